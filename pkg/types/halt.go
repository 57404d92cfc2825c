package types

import "sort"

// HaltKind tags the three row kinds that share a pattern's ordering domain.
type HaltKind string

// Halt kinds.
const (
	HaltStop          HaltKind = "stop"
	HaltLocation      HaltKind = "location"
	HaltLocationGroup HaltKind = "location_group"
)

// Flex reports whether the kind times a pickup/drop-off window instead of an
// arrival and departure.
func (k HaltKind) Flex() bool { return k != HaltStop }

// TimeColumns names the stop_times columns the kind writes.
func (k HaltKind) TimeColumns() (start, end string) {
	if k.Flex() {
		return FieldStartWindow, FieldEndWindow
	}
	return FieldArrivalTime, FieldDepartureTime
}

// PatternHalt is one stop, flex location, or location group position of a
// pattern. TravelTime is the default time from the previous halt and
// DwellTime the default time spent at this one (the zone time for flex
// kinds).
type PatternHalt struct {
	Kind       HaltKind
	PatternID  string
	Sequence   int64
	RefID      string
	TravelTime int64
	DwellTime  int64
}

// Contribution is the time this halt adds to the running total.
func (h PatternHalt) Contribution() int64 { return h.TravelTime + h.DwellTime }

// Times returns the arrival (or window start) and departure (or window end)
// at this halt when the previous halt was left at prev.
func (h PatternHalt) Times(prev int64) (arrive, depart int64) {
	arrive = prev + h.TravelTime
	return arrive, arrive + h.DwellTime
}

// Same reports whether two halts serve the same place with the same kind.
func (h PatternHalt) Same(o PatternHalt) bool {
	return h.Kind == o.Kind && h.RefID == o.RefID
}

// SortHalts orders halts by sequence, keeping input order for ties.
func SortHalts(halts []PatternHalt) {
	sort.SliceStable(halts, func(i, j int) bool { return halts[i].Sequence < halts[j].Sequence })
}

// HaltsFrom returns the halts with a sequence at or after from.
func HaltsFrom(halts []PatternHalt, from int64) []PatternHalt {
	var out []PatternHalt
	for _, h := range halts {
		if h.Sequence >= from {
			out = append(out, h)
		}
	}
	return out
}
