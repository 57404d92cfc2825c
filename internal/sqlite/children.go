// This file implements the child-table synchronizer.
package sqlite

import (
	"context"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// childRequest is one child collection to synchronize under a saved parent.
type childRequest struct {
	parent        *types.Table
	parentID      int64
	child         *types.Table
	docs          []types.Document
	creating      bool
	usesFrequency bool
}

// childSync replaces a parent's child rows with the submitted collection.
type childSync struct {
	tx     *txn
	refs   referenceChecker
	linked linkedPropagator
}

// sync validates and rewrites the child rows and returns the key value the
// rows were stored under. For shared geometry the key may differ from the
// parent's previous value (forked) or be empty (detached).
func (c childSync) sync(ctx context.Context, req childRequest) (key string, err error) {
	child := req.child
	key, valid, _, err := c.tx.keyForID(ctx, req.parent, child.KeyField, req.parentID)
	if err != nil {
		return "", err
	}
	if !valid {
		key = ""
	}
	if child.FrequencyOnly && !req.usesFrequency && len(req.docs) > 0 {
		return "", types.Validationf(child.Name, "", nil,
			"cannot create or update %s entries for a timetable-based pattern", child.Name)
	}

	switch {
	case child.SharedGeometry:
		key, err = c.claimGeometry(ctx, req, key)
		if err != nil || key == "" {
			return key, err
		}
	case key == "":
		if len(req.docs) > 0 {
			return "", types.Validationf(req.parent.Name, child.KeyField, nil,
				"%s.%s must be set before adding %s", req.parent.Name, child.KeyField, child.Name)
		}
		return "", nil
	case !req.creating:
		if err := c.deleteRows(ctx, child, key); err != nil {
			return "", err
		}
	}

	refs := newReferenceSet(child.Name)
	rows := make([][]any, 0, len(req.docs))
	var prev int64
	for i, doc := range req.docs {
		doc[child.KeyField] = key
		row, err := prepareRow(child, doc)
		if err != nil {
			return "", err
		}
		if child.OrderField != "" {
			if err := checkOrder(child, i, doc[child.OrderField], &prev); err != nil {
				return "", err
			}
		}
		refs.add(child, doc, req.parent.Name)
		if child.Halt == nil {
			if err := c.linked.propagateAll(ctx, child, doc); err != nil {
				return "", err
			}
		}
		rows = append(rows, row)
	}

	if err := c.insert(ctx, child, rows); err != nil {
		return "", err
	}
	if err := c.refs.verify(ctx, refs); err != nil {
		return "", err
	}
	c.tx.log.Debugw("child rows replaced", "table", child.Name, "key", key, "rows", len(rows))
	return key, nil
}

// claimGeometry decides which geometry key the parent writes to. A key
// shared with other parents is forked to a new key so their geometry stays
// untouched; a key owned by this parent alone is rewritten in place. An
// empty collection detaches the parent from the geometry.
func (c childSync) claimGeometry(ctx context.Context, req childRequest, key string) (string, error) {
	child := req.child
	if key == "" {
		if len(req.docs) == 0 {
			return "", nil
		}
		key = newKey()
		c.tx.log.Infow("assigning new geometry key", "table", child.Name, "key", key, "parent_id", req.parentID)
		return key, c.setParentKey(ctx, req, key)
	}

	owners, err := c.tx.count(ctx, c.tx.stmt("counting "+req.parent.Name+" sharing "+child.KeyField).
		sql("SELECT COUNT(*) FROM ").ident(req.parent.Name).
		sql(" WHERE ").ident(child.KeyField).sql(" = ").param(key))
	if err != nil {
		return "", err
	}
	if owners > 1 {
		if len(req.docs) == 0 {
			return "", c.setParentKey(ctx, req, nil)
		}
		forked := newKey()
		c.tx.log.Infow("forking shared geometry", "table", child.Name, "from", key, "to", forked,
			"owners", owners, "parent_id", req.parentID)
		return forked, c.setParentKey(ctx, req, forked)
	}
	if err := c.deleteRows(ctx, child, key); err != nil {
		return "", err
	}
	if len(req.docs) == 0 {
		return "", c.setParentKey(ctx, req, nil)
	}
	return key, nil
}

func (c childSync) setParentKey(ctx context.Context, req childRequest, key any) error {
	_, err := c.tx.exec(ctx, c.tx.stmt("repointing "+req.parent.Name+"."+req.child.KeyField).
		sql("UPDATE ").ident(req.parent.Name).sql(" SET ").ident(req.child.KeyField).sql(" = ").param(key).
		sql(" WHERE id = ").param(req.parentID))
	return err
}

func (c childSync) deleteRows(ctx context.Context, child *types.Table, key string) error {
	n, err := c.tx.exec(ctx, c.tx.stmt("deleting "+child.Name).
		sql("DELETE FROM ").ident(child.Name).sql(" WHERE ").ident(child.KeyField).sql(" = ").param(key))
	if err != nil {
		return err
	}
	c.tx.log.Debugw("deleted child rows", "table", child.Name, "key", key, "rows", n)
	return nil
}

// insert flushes rows in multi-row INSERT statements bounded by the batch
// size and the dialect's parameter limit.
func (c childSync) insert(ctx context.Context, t *types.Table, rows [][]any) error {
	perStmt := c.tx.batchSize
	if limit := c.tx.d.maxParams() / len(t.Fields); limit < perStmt {
		perStmt = limit
	}
	for _, part := range chunk(rows, perStmt) {
		if _, err := c.tx.exec(ctx, insertStmt(c.tx.d, t, part)); err != nil {
			return err
		}
	}
	return nil
}

// checkOrder enforces the table's ordering rule for the entity at index i.
func checkOrder(t *types.Table, i int, raw any, prev *int64) error {
	v, ok := types.Int64(raw)
	if !ok {
		return types.Validationf(t.Name, t.OrderField, raw,
			"%s %s value at index %d must be an integer", t.Name, t.OrderField, i)
	}
	defer func() { *prev = v }()
	switch t.Ordering {
	case types.OrderIncreasing:
		if i > 0 && v == *prev {
			return types.Validationf(t.Name, t.OrderField, v,
				"%s %s values must be unique and increasing; entity at index %d has duplicate value %d",
				t.Name, t.OrderField, i, v)
		}
		if i > 0 && v < *prev {
			return types.Validationf(t.Name, t.OrderField, v,
				"%s %s values must be unique and increasing; entity at index %d has non-increasing value %d",
				t.Name, t.OrderField, i, v)
		}
	default:
		if v != int64(i) {
			return types.Validationf(t.Name, t.OrderField, v,
				"%s %s values must be zero-based, unique, and incrementing; entity at index %d has illegal value %d",
				t.Name, t.OrderField, i, v)
		}
	}
	return nil
}
