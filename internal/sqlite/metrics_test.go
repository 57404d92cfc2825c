package sqlite

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := setupBackendWith(t, types.Config{Registerer: reg})
	seedNetwork(t, b)

	_, err := tryCreate(b, types.TableRoutes, route("R1"))
	require.ErrorIs(t, err, types.ErrConflict)
	p := mustCreate(t, b, types.TablePatterns, pattern("P1", "R1", halt("S1", 0, 60, 0)))
	tripOn(t, b, "T1", "P1", "S1")
	normalize(t, b, mustID(t, p), 0)

	ops := b.metrics.operations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(types.TableRoutes, "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(types.TableRoutes, "create", "conflict")))
	assert.Equal(t, 3.0, testutil.ToFloat64(ops.WithLabelValues(types.TableStops, "create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(types.TablePatterns, "normalize", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.metrics.normalized))
}

func TestMetrics_ReattachReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	dir := t.TempDir()

	first := setupBackendWith(t, types.Config{Registerer: reg, DataDir: dir})
	mustCreate(t, first, types.TableRoutes, route("R1"))
	require.NoError(t, first.Detach())

	second := setupBackendWith(t, types.Config{Registerer: reg, DataDir: dir})
	mustCreate(t, second, types.TableRoutes, route("R2"))

	assert.Equal(t, 2.0, testutil.ToFloat64(second.metrics.operations.WithLabelValues(types.TableRoutes, "create", "ok")))
}

func TestResultLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: "ok"},
		{err: types.Validationf("t", "f", nil, "bad"), want: "validation"},
		{err: &types.ConflictError{}, want: "conflict"},
		{err: &types.ReferenceError{}, want: "reference"},
		{err: &types.NotFoundError{}, want: "not_found"},
		{err: &types.StorageError{Op: "op", Err: errors.New("disk")}, want: "storage"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, result(tt.err))
		})
	}
}
