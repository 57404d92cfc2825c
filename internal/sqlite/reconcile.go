// This file implements pattern reconciliation: stop times follow the halts
// of their trip's pattern.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// haltRow is a pattern halt together with the row it was read from and
// that row's position within its own table.
type haltRow struct {
	halt  types.PatternHalt
	table *types.Table
	doc   types.Document
	index int
}

func halts(rows []haltRow) []types.PatternHalt {
	out := make([]types.PatternHalt, len(rows))
	for i, r := range rows {
		out[i] = r.halt
	}
	return out
}

// reconciler keeps the stop times of a pattern's trips in step with the
// pattern's halts.
type reconciler struct {
	tx     *txn
	linked linkedPropagator
}

// readHalts returns every halt of the pattern, merged across the halt
// tables and sorted by sequence.
func (r reconciler) readHalts(ctx context.Context, pattern *types.Table, patternKey string) ([]haltRow, error) {
	var rows []haltRow
	for _, t := range r.tx.catalog.HaltTables(pattern.Name) {
		docs, err := newTableReader(r.tx.tx, r.tx.d, t).GetOrdered(ctx, patternKey)
		if err != nil {
			return nil, err
		}
		for i, doc := range docs {
			rows = append(rows, haltRow{halt: haltFromDocument(t, doc), table: t, doc: doc, index: i})
		}
	}
	sortHaltRows(rows)
	return rows, nil
}

// checkHaltSequences rejects halts of different tables that share a
// sequence. rows must be sorted.
func checkHaltSequences(rows []haltRow) error {
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if cur.halt.Sequence != prev.halt.Sequence {
			continue
		}
		t := cur.table
		return types.Validationf(t.Name, t.OrderField, cur.halt.Sequence,
			"%s %s value %d at index %d is already used by %s",
			t.Name, t.OrderField, cur.halt.Sequence, cur.index, prev.table.Name)
	}
	return nil
}

func sortHaltRows(rows []haltRow) {
	hs := halts(rows)
	index := make(map[types.PatternHalt][]int, len(hs))
	for i, h := range hs {
		index[h] = append(index[h], i)
	}
	types.SortHalts(hs)
	sorted := make([]haltRow, len(rows))
	for i, h := range hs {
		j := index[h][0]
		index[h] = index[h][1:]
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func haltFromDocument(t *types.Table, doc types.Document) types.PatternHalt {
	h := types.PatternHalt{Kind: t.Halt.Kind}
	h.PatternID, _ = doc.Text(t.KeyField)
	h.Sequence, _ = types.Int64(doc[t.OrderField])
	h.RefID, _ = doc.Text(t.Halt.RefField)
	// Missing default times count as zero.
	if v, ok := types.Int64(doc[t.Halt.TravelField]); ok {
		h.TravelTime = v
	}
	if v, ok := types.Int64(doc[t.Halt.DwellField]); ok {
		h.DwellTime = v
	}
	return h
}

// reconcile runs after the halt tables of a pattern were rewritten.
// before and after hold the halts prior to and following the rewrite.
// Stop times are rebuilt when halts were added, removed or moved, and
// walked from the first halt whose place or timing changed.
func (r reconciler) reconcile(ctx context.Context, patternKey string, before, after []haltRow, usesFrequency bool) error {
	trips, err := r.tripsOf(ctx, patternKey)
	if err != nil {
		return err
	}
	diff := firstDifference(halts(before), halts(after))
	changed := diff < len(before) || diff < len(after)
	if changed && !sameLayout(halts(before), halts(after)) && len(trips) > 0 {
		for _, trip := range trips {
			if err := r.rebuildStopTimes(ctx, trip, before, after); err != nil {
				return err
			}
		}
		r.tx.log.Infow("reconciled stop times", "pattern_id", patternKey, "trips", len(trips),
			"halts_before", len(before), "halts_after", len(after))
	}
	for _, h := range after {
		for _, l := range h.table.Linked {
			if _, err := r.linked.propagate(ctx, l, h.doc); err != nil {
				return err
			}
		}
	}

	switch {
	case usesFrequency:
		_, err = r.walk(ctx, tripScope{patternKey: patternKey}, halts(after), 0)
		return err
	case changed && diff < len(after):
		from := halts(after)[diff:]
		for _, trip := range trips {
			seed, err := r.seed(ctx, trip, from[0].Sequence)
			if err != nil {
				return err
			}
			if _, err := r.walk(ctx, tripScope{tripID: trip}, from, seed); err != nil {
				return err
			}
		}
	}
	return nil
}

// firstDifference returns the first index at which the halt lists differ
// in place, sequence or default times.
func firstDifference(a, b []types.PatternHalt) int {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return i
}

// sameLayout reports whether both lists hold the same places at the same
// sequences.
func sameLayout(a, b []types.PatternHalt) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Same(b[i]) || a[i].Sequence != b[i].Sequence {
			return false
		}
	}
	return true
}

func (r reconciler) tripsOf(ctx context.Context, patternKey string) ([]string, error) {
	return r.tx.strings(ctx, r.tx.stmt("listing trips of pattern").
		sql("SELECT ").ident(types.FieldTripID).sql(" FROM ").ident(types.TableTrips).
		sql(" WHERE ").ident(types.FieldPatternID).sql(" = ").param(patternKey).sql(" ORDER BY id"))
}

// rebuildStopTimes rewrites one trip's stop times so there is exactly one
// row per halt. Rows whose halt survived the edit keep their values; rows
// for new halts start blank.
func (r reconciler) rebuildStopTimes(ctx context.Context, tripID string, before, after []haltRow) error {
	stopTimes, err := r.tx.table(types.TableStopTimes)
	if err != nil {
		return err
	}
	existing, err := newTableReader(r.tx.tx, r.tx.d, stopTimes).GetOrdered(ctx, tripID)
	if err != nil {
		return err
	}
	bySequence := make(map[int64]types.Document, len(existing))
	for _, doc := range existing {
		seq, _ := types.Int64(doc[types.FieldStopSequence])
		bySequence[seq] = doc
	}
	kept := matchHalts(halts(before), halts(after))

	if _, err := r.tx.exec(ctx, r.tx.stmt("clearing stop times").
		sql("DELETE FROM ").ident(stopTimes.Name).sql(" WHERE ").ident(types.FieldTripID).sql(" = ").param(tripID)); err != nil {
		return err
	}
	rows := make([][]any, 0, len(after))
	for ai, h := range after {
		doc := types.Document{}
		if bi, ok := kept[ai]; ok {
			if src, ok := bySequence[before[bi].halt.Sequence]; ok {
				for k, v := range src {
					doc[k] = v
				}
			}
		}
		delete(doc, types.IDField)
		doc[types.FieldTripID] = tripID
		doc[types.FieldStopSequence] = h.halt.Sequence
		doc[types.FieldStopID] = h.halt.RefID
		row, err := prepareRow(stopTimes, doc)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return childSync{tx: r.tx}.insert(ctx, stopTimes, rows)
}

// matchHalts pairs halts that survived an edit using the longest common
// subsequence on kind and place. The result maps an index of after to the
// matching index of before.
func matchHalts(before, after []types.PatternHalt) map[int]int {
	n, m := len(before), len(after)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if before[i].Same(after[j]) {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}
	pairs := make(map[int]int)
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case before[i].Same(after[j]):
			pairs[j] = i
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			i++
		default:
			j++
		}
	}
	return pairs
}

// tripScope selects the stop times a walk updates: one trip, or every trip
// of a pattern.
type tripScope struct {
	tripID     string
	patternKey string
}

// walk writes cumulative times for halts, starting from seed, and returns
// the number of stop times updated.
func (r reconciler) walk(ctx context.Context, scope tripScope, hs []types.PatternHalt, seed int64) (int, error) {
	updated := 0
	cumulative := seed
	for _, h := range hs {
		arrive, depart := h.Times(cumulative)
		start, end := h.Kind.TimeColumns()
		s := r.tx.stmt("updating stop times for halt").
			sql("UPDATE ").ident(types.TableStopTimes).sql(" SET ").
			ident(start).sql(" = ").param(arrive).sql(", ").ident(end).sql(" = ").param(depart).
			sql(" WHERE ").ident(types.FieldStopSequence).sql(" = ").param(h.Sequence).sql(" AND ")
		if scope.tripID != "" {
			s.ident(types.FieldTripID).sql(" = ").param(scope.tripID)
		} else {
			s.ident(types.FieldTripID).sql(" IN (SELECT ").ident(types.FieldTripID).sql(" FROM ").ident(types.TableTrips).
				sql(" WHERE ").ident(types.FieldPatternID).sql(" = ").param(scope.patternKey).sql(")")
		}
		n, err := r.tx.exec(ctx, s)
		if err != nil {
			return updated, err
		}
		updated += int(n)
		cumulative += h.Contribution()
	}
	return updated, nil
}

// seed returns the time a walk starting at sequence from should build on
// for one trip: the departure (or window end) of the nearest earlier stop
// time, or the arrival (or window start) of the first walked stop time when
// nothing precedes it. Missing values count as zero.
func (r reconciler) seed(ctx context.Context, tripID string, from int64) (int64, error) {
	prev := r.tx.stmt("reading preceding stop time").
		sql("SELECT ").idents([]string{types.FieldDepartureTime, types.FieldEndWindow}).
		sql(" FROM ").ident(types.TableStopTimes).
		sql(" WHERE ").ident(types.FieldTripID).sql(" = ").param(tripID).
		sql(" AND ").ident(types.FieldStopSequence).sql(" < ").param(from).
		sql(" ORDER BY ").ident(types.FieldStopSequence).sql(" DESC LIMIT 1")
	v, ok, err := r.firstTime(ctx, prev)
	if err != nil || ok {
		return v, err
	}
	first := r.tx.stmt("reading first stop time").
		sql("SELECT ").idents([]string{types.FieldArrivalTime, types.FieldStartWindow}).
		sql(" FROM ").ident(types.TableStopTimes).
		sql(" WHERE ").ident(types.FieldTripID).sql(" = ").param(tripID).
		sql(" AND ").ident(types.FieldStopSequence).sql(" = ").param(from)
	v, _, err = r.firstTime(ctx, first)
	return v, err
}

// firstTime reads a two-column time row and returns the first non-null
// value. ok is false when no row matched.
func (r reconciler) firstTime(ctx context.Context, s *stmt) (value int64, ok bool, err error) {
	rows, err := r.tx.query(ctx, s)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var a, b sql.NullInt64
	if err := rows.Scan(&a, &b); err != nil {
		return 0, false, &types.StorageError{Op: s.op, Err: err}
	}
	switch {
	case a.Valid:
		return a.Int64, true, nil
	case b.Valid:
		return b.Int64, true, nil
	}
	return 0, true, nil
}

// normalize recomputes stop times of every trip of the pattern from the
// halt at or after sequence from.
func (r reconciler) normalize(ctx context.Context, pattern *types.Table, patternKey string, from int64) (int, error) {
	rows, err := r.readHalts(ctx, pattern, patternKey)
	if err != nil {
		return 0, err
	}
	hs := types.HaltsFrom(halts(rows), from)
	if len(hs) == 0 {
		return 0, nil
	}
	trips, err := r.tripsOf(ctx, patternKey)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, trip := range trips {
		seed, err := r.seed(ctx, trip, hs[0].Sequence)
		if err != nil {
			return total, err
		}
		n, err := r.walk(ctx, tripScope{tripID: trip}, hs, seed)
		if err != nil {
			return total, err
		}
		total += n
	}
	r.tx.log.Infow("normalized stop times", "pattern_id", patternKey, "from", from, "trips", len(trips), "updated", total)
	return total, nil
}
