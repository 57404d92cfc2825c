package sqlite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

func TestReferences_DisjunctiveStopID(t *testing.T) {
	b := setupBackend(t)
	seedNetwork(t, b)
	mustCreate(t, b, types.TableLocations, types.Document{"location_id": "L1"})
	mustCreate(t, b, types.TableLocationGroups, types.Document{"location_group_id": "G1"})

	doc := trip("R1", "WKDY", "", stopTime("S1", 0), stopTime("L1", 1), stopTime("G1", 2))
	doc["trip_id"] = "T1"
	mustCreate(t, b, types.TableTrips, doc)
	assert.Len(t, ordered(t, b, types.TableStopTimes, "T1"), 3)

	doc = trip("R1", "WKDY", "", stopTime("S1", 0), stopTime("ZZ", 1), stopTime("AA", 2))
	doc["trip_id"] = "T2"
	_, err := tryCreate(b, types.TableTrips, doc)
	require.ErrorIs(t, err, types.ErrReference)

	var refErr *types.ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, types.TableStopTimes, refErr.Table)
	assert.Equal(t, types.FieldStopID, refErr.Field)
	assert.Equal(t, []string{"AA", "ZZ"}, refErr.Values)
	assert.EqualError(t, err,
		"stop_times entities must contain valid stop_id references to stops/locations/location_groups (invalid references: AA, ZZ)")
	assert.Empty(t, where(t, b, types.TableTrips, "trip_id", "T2"))
}

func TestReferences_PrimaryAndChildFields(t *testing.T) {
	b := setupBackend(t)
	seedNetwork(t, b)

	tests := []struct {
		name  string
		table string
		doc   types.Document
		field string
		value string
	}{
		{name: "pattern route", table: types.TablePatterns, doc: pattern("P1", "R9", halt("S1", 0, 0, 0)),
			field: "route_id", value: "R9"},
		{name: "pattern halt stop", table: types.TablePatterns, doc: pattern("P1", "R1", halt("S9", 0, 0, 0)),
			field: types.FieldStopID, value: "S9"},
		{name: "trip service", table: types.TableTrips, doc: trip("R1", "SUN", ""),
			field: "service_id", value: "SUN"},
		{name: "trip pattern", table: types.TableTrips, doc: trip("R1", "WKDY", "P9"),
			field: types.FieldPatternID, value: "P9"},
		{name: "route agency", table: types.TableRoutes,
			doc:   types.Document{"route_id": "R5", "route_type": 3, "agency_id": "NOPE"},
			field: "agency_id", value: "NOPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tryCreate(b, tt.table, tt.doc)
			require.ErrorIs(t, err, types.ErrReference)
			var refErr *types.ReferenceError
			require.True(t, errors.As(err, &refErr))
			assert.Equal(t, tt.field, refErr.Field)
			assert.Equal(t, []string{tt.value}, refErr.Values)
		})
	}
}

func TestReferenceSet_SkipsParentAndDeduplicates(t *testing.T) {
	stopTimes, ok := types.StandardCatalog().Table(types.TableStopTimes)
	require.True(t, ok)

	rs := newReferenceSet(stopTimes.Name)
	rs.add(stopTimes, types.Document{"trip_id": "T1", "stop_id": "S1"}, types.TableTrips)
	rs.add(stopTimes, types.Document{"trip_id": "T1", "stop_id": "S1"}, types.TableTrips)
	rs.add(stopTimes, types.Document{"trip_id": "T1", "stop_id": "S2", "pickup_booking_rule_id": "B1"}, types.TableTrips)

	assert.Equal(t, []string{"trip_id", "stop_id", "pickup_booking_rule_id"}, rs.order)
	assert.Empty(t, rs.fields["trip_id"].candidates)
	assert.Empty(t, rs.fields["trip_id"].values)
	assert.Equal(t, []string{"S1", "S2"}, rs.fields["stop_id"].values)
	assert.Equal(t, []string{types.TableStops, types.TableLocations, types.TableLocationGroups},
		rs.fields["stop_id"].candidates)
}
