package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

func setupBackend(t *testing.T) *Backend {
	t.Helper()
	return setupBackendWith(t, types.Config{})
}

func setupBackendWith(t *testing.T, config types.Config) *Backend {
	t.Helper()
	config.Backend = types.BackendSQLite
	if config.DataDir == "" {
		config.DataDir = t.TempDir()
	}
	b := NewBackend()
	require.NoError(t, b.Attach(config))
	t.Cleanup(func() { _ = b.Detach() })
	return b
}

func tryCreate(b *Backend, table string, doc types.Document) (types.Document, error) {
	ctx := context.Background()
	w, err := b.Writer(ctx, table)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return w.Create(ctx, doc, true)
}

func mustCreate(t *testing.T, b *Backend, table string, doc types.Document) types.Document {
	t.Helper()
	out, err := tryCreate(b, table, doc)
	require.NoError(t, err)
	return out
}

func tryUpdate(b *Backend, table string, id int64, doc types.Document) (types.Document, error) {
	ctx := context.Background()
	w, err := b.Writer(ctx, table)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return w.Update(ctx, id, doc, true)
}

func mustUpdate(t *testing.T, b *Backend, table string, id int64, doc types.Document) types.Document {
	t.Helper()
	out, err := tryUpdate(b, table, id, doc)
	require.NoError(t, err)
	return out
}

func tryDelete(b *Backend, table string, id int64) (int, error) {
	ctx := context.Background()
	w, err := b.Writer(ctx, table)
	if err != nil {
		return 0, err
	}
	defer w.Close()
	return w.Delete(ctx, id, true)
}

func mustID(t *testing.T, doc types.Document) int64 {
	t.Helper()
	id, ok := doc.ID()
	require.True(t, ok, "document has no id")
	return id
}

func ordered(t *testing.T, b *Backend, table, key string) []types.Document {
	t.Helper()
	r, err := b.Reader(table)
	require.NoError(t, err)
	docs, err := r.GetOrdered(context.Background(), key)
	require.NoError(t, err)
	return docs
}

func where(t *testing.T, b *Backend, table, field, value string) []types.Document {
	t.Helper()
	r, err := b.Reader(table)
	require.NoError(t, err)
	docs, err := r.Where(context.Background(), field, value)
	require.NoError(t, err)
	return docs
}

func get(t *testing.T, b *Backend, table string, id int64) types.Document {
	t.Helper()
	r, err := b.Reader(table)
	require.NoError(t, err)
	doc, err := r.Get(context.Background(), id)
	require.NoError(t, err)
	return doc
}

// times returns the given column of each stop time.
func times(docs []types.Document, field string) []any {
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d[field]
	}
	return out
}

func calendar(serviceID string) types.Document {
	return types.Document{
		"service_id": serviceID,
		"monday":     1, "tuesday": 1, "wednesday": 1, "thursday": 1, "friday": 1,
		"saturday": 0, "sunday": 0,
		"start_date": "20260101", "end_date": "20261231",
	}
}

func stop(stopID string) types.Document {
	return types.Document{"stop_id": stopID, "stop_name": "Stop " + stopID, "stop_lat": 47.6, "stop_lon": -122.3}
}

func route(routeID string) types.Document {
	return types.Document{"route_id": routeID, "route_short_name": routeID, "route_type": 3}
}

func halt(stopID string, seq, travel, dwell int) types.Document {
	return types.Document{
		"stop_id":             stopID,
		"stop_sequence":       seq,
		"default_travel_time": travel,
		"default_dwell_time":  dwell,
	}
}

func pattern(patternID, routeID string, halts ...types.Document) types.Document {
	return types.Document{
		"pattern_id":    patternID,
		"route_id":      routeID,
		"name":          "Pattern " + patternID,
		"pattern_stops": append([]types.Document{}, halts...),
		"shapes":        []types.Document{},
	}
}

func point(seq int, lat, lon float64) types.Document {
	return types.Document{"shape_pt_sequence": seq, "shape_pt_lat": lat, "shape_pt_lon": lon}
}

func stopTime(stopID string, seq int) types.Document {
	return types.Document{"stop_id": stopID, "stop_sequence": seq}
}

func trip(routeID, serviceID, patternID string, stopTimes ...types.Document) types.Document {
	return types.Document{
		"route_id":    routeID,
		"service_id":  serviceID,
		"pattern_id":  patternID,
		"stop_times":  append([]types.Document{}, stopTimes...),
		"frequencies": []types.Document{},
	}
}

// seedNetwork creates calendar WKDY, stops S1 to S3, and route R1.
func seedNetwork(t *testing.T, b *Backend) {
	t.Helper()
	mustCreate(t, b, types.TableCalendar, calendar("WKDY"))
	for _, id := range []string{"S1", "S2", "S3"} {
		mustCreate(t, b, types.TableStops, stop(id))
	}
	mustCreate(t, b, types.TableRoutes, route("R1"))
}
