// This file implements the writer's Prometheus counters.
package sqlite

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// metrics counts writer outcomes. Collectors are registered on the
// configured registerer, or on a private registry when none is given.
type metrics struct {
	operations *prometheus.CounterVec
	normalized prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "operations_total",
			Help:      "Table writer operations by table, operation, and result.",
		}, []string{"table", "op", "result"}),
		normalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "timetable",
			Name:      "stop_times_normalized_total",
			Help:      "Stop times rewritten by pattern normalization.",
		}),
	}
	ops, err := register(reg, m.operations)
	if err != nil {
		return nil, err
	}
	normalized, err := register(reg, m.normalized)
	if err != nil {
		return nil, err
	}
	m.operations, m.normalized = ops, normalized
	return m, nil
}

// register adds c to reg. When an equal collector is already registered,
// for example by an earlier attach, that collector is returned instead.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *metrics) observe(table, op string, err error) {
	m.operations.WithLabelValues(table, op, result(err)).Inc()
}

// result names the error kind for the result label.
func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrValidation):
		return "validation"
	case errors.Is(err, types.ErrConflict):
		return "conflict"
	case errors.Is(err, types.ErrReference):
		return "reference"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}
