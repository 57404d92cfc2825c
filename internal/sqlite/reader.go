// This file implements the table reader.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// queryer is satisfied by *sql.DB and *sql.Tx, so the same reader serves
// callers outside a transaction and engine components inside one.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var _ types.TableReader = (*tableReader)(nil)

// tableReader reads rows of one table into Documents.
type tableReader struct {
	q     queryer
	d     dialect
	table *types.Table
}

func newTableReader(q queryer, d dialect, t *types.Table) *tableReader {
	return &tableReader{q: q, d: d, table: t}
}

// Get returns the row with the given id.
func (r *tableReader) Get(ctx context.Context, id int64) (types.Document, error) {
	s := selectStmt(r.d, r.table, "getting "+r.table.Name).sql(" WHERE id = ").param(id)
	docs, err := r.scan(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &types.NotFoundError{Table: r.table.Name, ID: id}
	}
	return docs[0], nil
}

// GetOrdered returns the rows sharing key, in order-field order.
func (r *tableReader) GetOrdered(ctx context.Context, key string) ([]types.Document, error) {
	s := selectStmt(r.d, r.table, "listing "+r.table.Name).
		sql(" WHERE ").ident(r.table.KeyField).sql(" = ").param(key).sql(" ORDER BY ")
	if r.table.OrderField != "" {
		s.ident(r.table.OrderField).sql(", ")
	}
	s.sql("id")
	return r.scan(ctx, s)
}

// Where returns the rows whose field equals value.
func (r *tableReader) Where(ctx context.Context, field, value string) ([]types.Document, error) {
	f, ok := r.table.Field(field)
	if !ok {
		return nil, types.Validationf(r.table.Name, field, nil, "%s has no field %s", r.table.Name, field)
	}
	v, err := bindValue(r.table.Name, f, value)
	if err != nil {
		return nil, err
	}
	s := selectStmt(r.d, r.table, "filtering "+r.table.Name).
		sql(" WHERE ").ident(field).sql(" = ").param(v).sql(" ORDER BY id")
	return r.scan(ctx, s)
}

func (r *tableReader) scan(ctx context.Context, s *stmt) ([]types.Document, error) {
	if s.err != nil {
		return nil, &types.StorageError{Op: s.op, Err: s.err}
	}
	rows, err := r.q.QueryContext(ctx, s.String(), s.args...)
	if err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		var id int64
		cells := make([]any, len(r.table.Fields))
		dest := make([]any, len(cells)+1)
		dest[0] = &id
		for i := range cells {
			dest[i+1] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &types.StorageError{Op: s.op, Err: err}
		}
		doc := types.Document{types.IDField: id}
		for i, f := range r.table.Fields {
			doc[f.Name] = documentValue(f, cells[i])
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	return docs, nil
}
