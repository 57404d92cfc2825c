// This file implements schema bootstrap from the catalog.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// schemaStatements returns the DDL for every catalog table: the table itself
// and an index on its key field (extended by the order field when the table
// has one). The index is unique for tables whose key identifies one row;
// NULL keys never collide.
func schemaStatements(d dialect, c *types.Catalog) []*stmt {
	var out []*stmt
	for _, t := range c.Tables() {
		s := newStmt(d, "creating table "+t.Name).
			sql("CREATE TABLE IF NOT EXISTS ").ident(t.Name).sql(" (", d.idColumn())
		for _, f := range t.Fields {
			s.sql(", ").ident(f.Name).sql(" ", d.columnType(f.Type))
		}
		out = append(out, s.sql(")"))

		idx := newStmt(d, "creating index on "+t.Name).sql("CREATE ")
		if t.UniqueKey() {
			idx.sql("UNIQUE ")
		}
		idx.sql("INDEX IF NOT EXISTS ").ident(t.Name+"_key_idx").sql(" ON ").ident(t.Name).
			sql(" (").ident(t.KeyField)
		if t.OrderField != "" {
			idx.sql(", ").ident(t.OrderField)
		}
		out = append(out, idx.sql(")"))
	}
	return out
}

// createSchema creates any missing catalog tables. Existing tables are left
// as they are.
func createSchema(ctx context.Context, db *sql.DB, d dialect, c *types.Catalog) error {
	for _, s := range schemaStatements(d, c) {
		if s.err != nil {
			return &types.StorageError{Op: s.op, Err: s.err}
		}
		if _, err := db.ExecContext(ctx, s.String()); err != nil {
			return &types.StorageError{Op: s.op, Err: err}
		}
	}
	return nil
}
