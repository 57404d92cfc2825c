// This file implements key integrity checks for saved rows.
package sqlite

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// integrity settles the key of a document before its row is written: it
// fills generated keys, enforces the key policy and uniqueness, and carries
// a changed key to the rows that reference the old one.
type integrity struct {
	tx      *txn
	cascade *cascade
}

// check runs against doc for the row being created, or for the row with
// the given id when updating.
func (i integrity) check(ctx context.Context, t *types.Table, doc types.Document, id int64, creating bool) error {
	key, present := doc.Text(t.KeyField)
	if key == "" {
		present = false
		doc[t.KeyField] = nil
	}
	if !t.UniqueKey() {
		return nil
	}

	if !present {
		switch t.KeyPolicy {
		case types.KeyGenerated:
			key = newKey()
			present = true
			doc[t.KeyField] = key
			i.tx.log.Debugw("generated key", "table", t.Name, "field", t.KeyField, "key", key)
		case types.KeyOptionalWhenSingle:
			if err := i.checkSingle(ctx, t, creating); err != nil {
				return err
			}
		default:
			return types.Validationf(t.Name, t.KeyField, nil, "%s key field %s must not be null", t.Name, t.KeyField)
		}
	}

	if present {
		ids, err := i.tx.idsWhere(ctx, t, t.KeyField, key)
		if err != nil {
			return err
		}
		others := 0
		for _, other := range ids {
			if creating || other != id {
				others++
			}
		}
		if others > 0 {
			i.tx.log.Warnw("duplicate key", "table", t.Name, "field", t.KeyField, "key", key, "count", others)
			return &types.ConflictError{
				Table: t.Name, Field: t.KeyField, Value: key, Count: others, Referencing: t.Name,
				Message: fmt.Sprintf("%s %s=%s is already used by %d other %s", t.Name, t.KeyField, key, others, t.Name),
			}
		}
	}

	if creating {
		return nil
	}
	old, valid, found, err := i.tx.keyForID(ctx, t, t.KeyField, id)
	if err != nil {
		return err
	}
	if !found {
		return &types.NotFoundError{Table: t.Name, ID: id}
	}
	if !valid || old == "" || (present && old == key) {
		return nil
	}
	var to *string
	if present {
		to = &key
	}
	_, err = i.cascade.rename(ctx, t, old, to)
	return err
}

// checkSingle allows a null key only while the saved row is the table's
// only row.
func (i integrity) checkSingle(ctx context.Context, t *types.Table, creating bool) error {
	n, err := i.tx.count(ctx, i.tx.stmt("counting "+t.Name).sql("SELECT COUNT(*) FROM ").ident(t.Name))
	if err != nil {
		return err
	}
	limit := 1
	if creating {
		limit = 0
	}
	if n > limit {
		return types.Validationf(t.Name, t.KeyField, nil,
			"%s key field %s must not be null when more than one %s exists", t.Name, t.KeyField, t.Name)
	}
	return nil
}
