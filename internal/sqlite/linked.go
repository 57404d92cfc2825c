// This file implements linked-field propagation from a saved row to the rows
// that copy its fields.
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// linkedPropagator copies duplicated fields from a saved entity into the
// rows that repeat them: a route's accessibility into its trips, a
// pattern's direction and shape into its trips, a halt's pickup and
// drop-off settings into the stop times at the same position.
type linkedPropagator struct {
	tx *txn
}

// propagateAll applies every linked-field set declared on t.
func (p linkedPropagator) propagateAll(ctx context.Context, t *types.Table, doc types.Document) error {
	for _, l := range t.Linked {
		if _, err := p.propagate(ctx, l, doc); err != nil {
			return err
		}
	}
	return nil
}

// propagate issues one UPDATE for l. Matching no rows is not an error.
func (p linkedPropagator) propagate(ctx context.Context, l types.LinkedFields, doc types.Document) (int64, error) {
	if len(l.Fields) == 0 {
		return 0, nil
	}
	key, ok := doc.Text(l.KeyField)
	if !ok || key == "" {
		return 0, nil
	}
	target, err := p.tx.table(l.Table)
	if err != nil {
		return 0, err
	}

	s := p.tx.stmt("updating linked " + l.Table + " fields").sql("UPDATE ").ident(target.Name).sql(" SET ")
	for i, name := range l.Fields {
		f, _ := target.Field(name)
		v, err := linkedValue(target.Name, f, doc[name])
		if err != nil {
			return 0, err
		}
		if i > 0 {
			s.sql(", ")
		}
		s.ident(name).sql(" = ").param(v)
	}
	s.sql(" WHERE ")
	if l.Through != "" {
		s.ident(l.ThroughKey).sql(" IN (SELECT ").ident(l.ThroughKey).sql(" FROM ").ident(l.Through).
			sql(" WHERE ").ident(l.KeyField).sql(" = ").param(key).sql(")")
	} else {
		s.ident(l.KeyField).sql(" = ").param(key)
	}
	if l.OrderField != "" {
		order, ok := types.Int64(doc[l.OrderField])
		if !ok {
			return 0, types.Validationf(l.Table, l.OrderField, doc[l.OrderField], "%s must be an integer", l.OrderField)
		}
		s.sql(" AND ").ident(l.OrderField).sql(" = ").param(order)
	}
	n, err := p.tx.exec(ctx, s)
	if err != nil {
		return 0, err
	}
	p.tx.log.Debugw("linked fields updated", "table", l.Table, "key", key, "rows", n)
	return n, nil
}

func linkedValue(table string, f types.Field, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok && s == "" {
		return nil, nil
	}
	return bindValue(table, f, raw)
}
