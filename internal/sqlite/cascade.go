// This file implements delete and rename cascades across referencing tables.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// reference is one field of a table that points at another table.
type reference struct {
	table *types.Table
	field types.Field
}

func (r reference) list() bool { return r.field.Type == types.FieldStringList }

// cascade carries delete and rename effects to every row that references
// a changed key. Geometry keys released by deleted rows are remembered and
// pruned once the primary delete has run.
type cascade struct {
	tx      *txn
	orphans map[string]map[string]bool
}

func newCascade(tx *txn) *cascade {
	return &cascade{tx: tx, orphans: make(map[string]map[string]bool)}
}

// referencing lists the fields of other tables that point at t.
func (c *cascade) referencing(t *types.Table) []reference {
	var out []reference
	for _, r := range c.tx.catalog.Referencing(t.Name) {
		for _, f := range r.Fields {
			if f.ReferencesTable(t.Name) {
				out = append(out, reference{table: r, field: f})
			}
		}
	}
	return out
}

// deleteReferences runs before rows of t holding key are deleted. Rows of
// restricted tables block the delete with a ConflictError. References to
// shared geometry are set to null. Scalar references to anything else are
// deleted along with their own dependents, and list references drop the
// value.
func (c *cascade) deleteReferences(ctx context.Context, t *types.Table, key string) error {
	refs := c.referencing(t)
	if t.CascadeRestricted {
		for _, r := range refs {
			n, err := c.countReferences(ctx, r, key)
			if err != nil {
				return err
			}
			if n > 0 {
				err := &types.ConflictError{
					Table: t.Name, Field: t.KeyField, Value: key, Count: n, Referencing: r.table.Name,
					Message: fmt.Sprintf("cannot delete %s %s=%s: %d %s reference this %s",
						t.Name, t.KeyField, key, n, r.table.Name, t.Name),
				}
				c.tx.log.Warnw("restricted delete blocked", "table", t.Name, "key", key,
					"referencing", r.table.Name, "count", n)
				return err
			}
		}
		return nil
	}
	for _, r := range refs {
		var err error
		switch {
		case r.list():
			_, err = c.renameList(ctx, r, key, nil)
		case t.SharedGeometry:
			_, err = c.setScalar(ctx, r, key, nil)
		default:
			err = c.deleteReferencing(ctx, r, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// deleteReferencing deletes the rows of r.table whose r.field is key,
// cascading first into whatever references those rows.
func (c *cascade) deleteReferencing(ctx context.Context, r reference, key string) error {
	t := r.table
	keys, err := c.tx.strings(ctx, c.tx.stmt("listing "+t.Name+" keys").
		sql("SELECT DISTINCT ").ident(t.KeyField).sql(" FROM ").ident(t.Name).
		sql(" WHERE ").ident(r.field.Name).sql(" = ").param(key))
	if err != nil {
		return err
	}
	if t.UniqueKey() {
		for _, k := range keys {
			if err := c.deleteReferences(ctx, t, k); err != nil {
				return err
			}
		}
	}
	if err := c.noteGeometry(ctx, t, r.field.Name, key); err != nil {
		return err
	}
	n, err := c.tx.exec(ctx, c.tx.stmt("cascading delete to "+t.Name).
		sql("DELETE FROM ").ident(t.Name).sql(" WHERE ").ident(r.field.Name).sql(" = ").param(key))
	if err != nil {
		return err
	}
	if n > 0 {
		c.tx.log.Infow("cascaded delete", "table", t.Name, "field", r.field.Name, "key", key, "rows", n)
	}
	if t.UniqueKey() {
		return nil
	}
	// Keys of repeating tables only release their dependents once the last
	// row holding them is gone.
	for _, k := range keys {
		left, err := c.tx.count(ctx, c.tx.stmt("counting "+t.Name+" rows").
			sql("SELECT COUNT(*) FROM ").ident(t.Name).sql(" WHERE ").ident(t.KeyField).sql(" = ").param(k))
		if err != nil {
			return err
		}
		if left == 0 {
			if err := c.deleteReferences(ctx, t, k); err != nil {
				return err
			}
		}
	}
	return nil
}

// rename points every reference to from at to. A nil to clears scalar
// references and removes the value from lists. Returns the rows changed.
func (c *cascade) rename(ctx context.Context, t *types.Table, from string, to *string) (int64, error) {
	var total int64
	for _, r := range c.referencing(t) {
		var n int64
		var err error
		if r.list() {
			n, err = c.renameList(ctx, r, from, to)
		} else {
			var v any
			if to != nil {
				v = *to
			}
			n, err = c.setScalar(ctx, r, from, v)
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	c.tx.log.Infow("renamed references", "table", t.Name, "from", from, "to", to, "rows", total)
	return total, nil
}

func (c *cascade) setScalar(ctx context.Context, r reference, from string, to any) (int64, error) {
	return c.tx.exec(ctx, c.tx.stmt("updating "+r.table.Name+"."+r.field.Name).
		sql("UPDATE ").ident(r.table.Name).sql(" SET ").ident(r.field.Name).sql(" = ").param(to).
		sql(" WHERE ").ident(r.field.Name).sql(" = ").param(from))
}

// renameList replaces from with to in every list holding it, or removes it
// when to is nil.
func (c *cascade) renameList(ctx context.Context, r reference, from string, to *string) (int64, error) {
	rows, err := c.listRows(ctx, r, from)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		out := make([]string, 0, len(row.values))
		for _, v := range row.values {
			switch {
			case v != from:
				out = append(out, v)
			case to != nil:
				out = append(out, *to)
			}
		}
		data, err := json.Marshal(out)
		if err != nil {
			return 0, err
		}
		if _, err := c.tx.exec(ctx, c.tx.stmt("rewriting "+r.table.Name+"."+r.field.Name).
			sql("UPDATE ").ident(r.table.Name).sql(" SET ").ident(r.field.Name).sql(" = ").param(string(data)).
			sql(" WHERE id = ").param(row.id)); err != nil {
			return 0, err
		}
	}
	return int64(len(rows)), nil
}

func (c *cascade) countReferences(ctx context.Context, r reference, key string) (int, error) {
	if r.list() {
		rows, err := c.listRows(ctx, r, key)
		return len(rows), err
	}
	return c.tx.count(ctx, c.tx.stmt("counting "+r.table.Name+" references").
		sql("SELECT COUNT(*) FROM ").ident(r.table.Name).
		sql(" WHERE ").ident(r.field.Name).sql(" = ").param(key))
}

type listRow struct {
	id     int64
	values []string
}

// listRows returns the rows whose list field contains value. A LIKE on the
// encoded value narrows the scan; the decoded list decides.
func (c *cascade) listRows(ctx context.Context, r reference, value string) ([]listRow, error) {
	quoted, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	s := c.tx.stmt("scanning "+r.table.Name+"."+r.field.Name).
		sql("SELECT id, ").ident(r.field.Name).sql(" FROM ").ident(r.table.Name).
		sql(" WHERE ").ident(r.field.Name).sql(" LIKE ").param("%"+escapeLike(string(quoted))+"%").
		sql(` ESCAPE '\' ORDER BY id`)
	rows, err := c.tx.query(ctx, s)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []listRow
	for rows.Next() {
		var id int64
		var text sql.NullString
		if err := rows.Scan(&id, &text); err != nil {
			return nil, &types.StorageError{Op: s.op, Err: err}
		}
		values := decodeList(text.String)
		if contains(values, value) {
			out = append(out, listRow{id: id, values: values})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: s.op, Err: err}
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

// noteGeometry remembers the geometry keys held by the rows of t whose
// field equals value, before those rows are deleted.
func (c *cascade) noteGeometry(ctx context.Context, t *types.Table, field string, value any) error {
	for _, f := range t.Fields {
		for _, target := range f.References {
			g, ok := c.tx.catalog.Table(target)
			if !ok || !g.SharedGeometry {
				continue
			}
			keys, err := c.tx.strings(ctx, c.tx.stmt("listing "+t.Name+"."+f.Name).
				sql("SELECT DISTINCT ").ident(f.Name).sql(" FROM ").ident(t.Name).
				sql(" WHERE ").ident(field).sql(" = ").param(value))
			if err != nil {
				return err
			}
			for _, k := range keys {
				if c.orphans[g.Name] == nil {
					c.orphans[g.Name] = make(map[string]bool)
				}
				c.orphans[g.Name][k] = true
			}
		}
	}
	return nil
}

// prune deletes remembered geometry that nothing references any more and
// returns the number of keys removed.
func (c *cascade) prune(ctx context.Context) (int, error) {
	pruned := 0
	for name, set := range c.orphans {
		g, err := c.tx.table(name)
		if err != nil {
			return pruned, err
		}
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			used := 0
			for _, r := range c.referencing(g) {
				n, err := c.countReferences(ctx, r, k)
				if err != nil {
					return pruned, err
				}
				used += n
			}
			if used > 0 {
				continue
			}
			if _, err := c.tx.exec(ctx, c.tx.stmt("pruning "+g.Name).
				sql("DELETE FROM ").ident(g.Name).sql(" WHERE ").ident(g.KeyField).sql(" = ").param(k)); err != nil {
				return pruned, err
			}
			pruned++
		}
	}
	c.orphans = make(map[string]map[string]bool)
	if pruned > 0 {
		c.tx.log.Infow("pruned unreferenced geometry", "keys", pruned)
	}
	return pruned, nil
}
