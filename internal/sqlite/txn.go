// This file implements transaction-scoped query helpers.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// txn is the transaction handle every engine component receives. It carries
// no state beyond the open transaction and the backend settings.
type txn struct {
	tx        *sql.Tx
	d         dialect
	catalog   *types.Catalog
	log       *zap.SugaredLogger
	batchSize int
}

func (t *txn) stmt(op string) *stmt { return newStmt(t.d, op) }

func (t *txn) table(name string) (*types.Table, error) {
	tbl, ok := t.catalog.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, name)
	}
	return tbl, nil
}

// exec runs s and returns the number of rows affected.
func (t *txn) exec(ctx context.Context, s *stmt) (int64, error) {
	if s.err != nil {
		return 0, &types.StorageError{Op: s.op, Err: s.err}
	}
	t.log.Debugw("exec", "op", s.op, "sql", s.String(), "params", len(s.args))
	res, err := t.tx.ExecContext(ctx, s.String(), s.args...)
	if err != nil {
		return 0, &types.StorageError{Op: s.op, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &types.StorageError{Op: s.op, Err: err}
	}
	return n, nil
}

// query runs s. The caller closes the rows.
func (t *txn) query(ctx context.Context, s *stmt) (*sql.Rows, error) {
	if s.err != nil {
		return nil, &types.StorageError{Op: s.op, Err: s.err}
	}
	t.log.Debugw("query", "op", s.op, "sql", s.String(), "params", len(s.args))
	rows, err := t.tx.QueryContext(ctx, s.String(), s.args...)
	if err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	return rows, nil
}

// strings runs s and collects the first column of each row. Null values
// are skipped.
func (t *txn) strings(ctx context.Context, s *stmt) ([]string, error) {
	rows, err := t.query(ctx, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, &types.StorageError{Op: s.op, Err: err}
		}
		if v.Valid {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	return out, nil
}

// ints runs s and collects the first column of each row as int64.
func (t *txn) ints(ctx context.Context, s *stmt) ([]int64, error) {
	rows, err := t.query(ctx, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, &types.StorageError{Op: s.op, Err: err}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	return out, nil
}

// count runs a SELECT COUNT(*) statement.
func (t *txn) count(ctx context.Context, s *stmt) (int, error) {
	n, err := t.ints(ctx, s)
	if err != nil {
		return 0, err
	}
	if len(n) == 0 {
		return 0, nil
	}
	return int(n[0]), nil
}

// keyForID returns the value of field for the row with the given id.
// found is false when no row has that id; a null value reports found with
// valid false.
func (t *txn) keyForID(ctx context.Context, tbl *types.Table, field string, id int64) (value string, valid, found bool, err error) {
	s := t.stmt("reading "+tbl.Name+"."+field).
		sql("SELECT ").ident(field).sql(" FROM ").ident(tbl.Name).sql(" WHERE id = ").param(id)
	rows, err := t.query(ctx, s)
	if err != nil {
		return "", false, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, false, rows.Err()
	}
	var v sql.NullString
	if err := rows.Scan(&v); err != nil {
		return "", false, false, &types.StorageError{Op: s.op, Err: err}
	}
	return v.String, v.Valid, true, nil
}

// idsWhere returns the ids of rows whose field equals value.
func (t *txn) idsWhere(ctx context.Context, tbl *types.Table, field, value string) ([]int64, error) {
	s := t.stmt("selecting "+tbl.Name+" ids").
		sql("SELECT id FROM ").ident(tbl.Name).sql(" WHERE ").ident(field).sql(" = ").param(value).
		sql(" ORDER BY id")
	return t.ints(ctx, s)
}
