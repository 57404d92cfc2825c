// Package sqlite provides the public constructor for the SQL-backed
// schedule store while keeping the engine internal.
package sqlite

import (
	"github.com/mesh-intelligence/timetable/internal/sqlite"
	"github.com/mesh-intelligence/timetable/pkg/types"
)

// NewBackend creates a new store. The store is not attached; call Attach
// with a Config to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".timetable-db",
//	})
//	defer store.Detach()
//
//	w, err := store.Writer(ctx, types.TableRoutes)
//	route, err := w.Create(ctx, doc, true)
func NewBackend() types.Store {
	return sqlite.NewBackend()
}
