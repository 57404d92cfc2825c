// This file implements the table writer and its transaction lifecycle.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

var _ types.TableWriter = (*tableWriter)(nil)

var errNoID = errors.New("insert returned no id")

// session is the transaction shared by a writer and the sibling writers
// opened from it with ForTable.
type session struct {
	mu      sync.Mutex
	tx      *txn
	metrics *metrics
	closed  bool
}

func (s *session) commit() error {
	if err := s.tx.tx.Commit(); err != nil {
		s.closed = true
		return &types.StorageError{Op: "committing", Err: err}
	}
	s.closed = true
	s.tx.log.Debugw("transaction committed")
	return nil
}

func (s *session) rollback(cause error) {
	if s.closed {
		return
	}
	s.closed = true
	if err := s.tx.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.tx.log.Errorw("rollback failed", "error", err)
	}
	if cause != nil {
		s.tx.log.Infow("transaction rolled back", "error", cause)
	}
}

// tableWriter applies edits to one table inside the session's transaction.
type tableWriter struct {
	s     *session
	table *types.Table
}

func newTableWriter(s *session, t *types.Table) *tableWriter {
	return &tableWriter{s: s, table: t}
}

// run executes fn inside the session. A failure rolls back and closes the
// session; success commits when autoCommit is set.
func (w *tableWriter) run(op string, autoCommit bool, fn func(tx *txn) error) error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if w.s.closed {
		return types.ErrWriterClosed
	}
	err := classify(w.s.tx.d, w.table, op, fn(w.s.tx))
	if err == nil && autoCommit {
		err = w.s.commit()
	}
	w.s.metrics.observe(w.table.Name, op, err)
	if err != nil {
		w.s.rollback(err)
		return err
	}
	return nil
}

// classify makes sure every error carries one of the engine's error kinds.
// A unique index rejecting a write means another transaction committed the
// same key after this one checked it.
func classify(d dialect, t *types.Table, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case d.uniqueViolation(err):
		return &types.ConflictError{
			Table:   t.Name,
			Field:   t.KeyField,
			Message: fmt.Sprintf("%s %s conflicts with a concurrent write: %v", t.Name, t.KeyField, err),
		}
	case errors.Is(err, types.ErrValidation),
		errors.Is(err, types.ErrConflict),
		errors.Is(err, types.ErrReference),
		errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrStorage):
		return err
	}
	return &types.StorageError{Op: op, Err: err}
}

// Create inserts doc and its child collections.
func (w *tableWriter) Create(ctx context.Context, doc types.Document, autoCommit bool) (types.Document, error) {
	var out types.Document
	err := w.run("create", autoCommit, func(tx *txn) error {
		var err error
		out, err = w.save(ctx, tx, doc, 0, true)
		return err
	})
	return out, err
}

// Update rewrites the row with the given id and replaces its child
// collections.
func (w *tableWriter) Update(ctx context.Context, id int64, doc types.Document, autoCommit bool) (types.Document, error) {
	var out types.Document
	err := w.run("update", autoCommit, func(tx *txn) error {
		var err error
		out, err = w.save(ctx, tx, doc, id, false)
		return err
	})
	return out, err
}

// CreateAll creates every document in one transaction.
func (w *tableWriter) CreateAll(ctx context.Context, docs []types.Document, autoCommit bool) ([]types.Document, error) {
	out := make([]types.Document, 0, len(docs))
	err := w.run("create", autoCommit, func(tx *txn) error {
		for _, doc := range docs {
			saved, err := w.save(ctx, tx, doc, 0, true)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateAll updates every document that carries an id and creates the rest,
// in one transaction.
func (w *tableWriter) UpdateAll(ctx context.Context, docs []types.Document, autoCommit bool) ([]types.Document, error) {
	out := make([]types.Document, 0, len(docs))
	err := w.run("update", autoCommit, func(tx *txn) error {
		for _, doc := range docs {
			id, ok := doc.ID()
			saved, err := w.save(ctx, tx, doc, id, !ok)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// save runs one create or update through every stage of the write.
func (w *tableWriter) save(ctx context.Context, tx *txn, doc types.Document, id int64, creating bool) (types.Document, error) {
	t := w.table
	if doc == nil {
		return nil, types.Validationf(t.Name, "", nil, "%s document must not be null", t.Name)
	}
	if !creating {
		n, err := tx.count(ctx, tx.stmt("checking "+t.Name+" id").
			sql("SELECT COUNT(*) FROM ").ident(t.Name).sql(" WHERE id = ").param(id))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, &types.NotFoundError{Table: t.Name, ID: id}
		}
	}

	children, err := w.collections(tx, doc)
	if err != nil {
		return nil, err
	}

	c := newCascade(tx)
	if err := (integrity{tx: tx, cascade: c}).check(ctx, t, doc, id, creating); err != nil {
		return nil, err
	}
	row, err := prepareRow(t, doc)
	if err != nil {
		return nil, err
	}
	if creating {
		if id, err = w.insert(ctx, tx, row); err != nil {
			return nil, err
		}
	} else if _, err := tx.exec(ctx, updateStmt(tx.d, t, id, row)); err != nil {
		return nil, err
	}
	doc[types.IDField] = id

	usesFrequency, err := w.usesFrequency(ctx, tx, doc)
	if err != nil {
		return nil, err
	}
	rec := reconciler{tx: tx, linked: linkedPropagator{tx: tx}}
	haltTables := tx.catalog.HaltTables(t.Name)
	patternKey, _ := doc.Text(t.KeyField)
	var before []haltRow
	if len(haltTables) > 0 && !creating {
		if before, err = rec.readHalts(ctx, t, patternKey); err != nil {
			return nil, err
		}
	}

	cs := childSync{tx: tx, refs: referenceChecker{tx: tx}, linked: linkedPropagator{tx: tx}}
	synced := make([]string, 0, len(children))
	for _, ch := range children {
		key, err := cs.sync(ctx, childRequest{
			parent:        t,
			parentID:      id,
			child:         ch.table,
			docs:          ch.docs,
			creating:      creating,
			usesFrequency: usesFrequency,
		})
		if err != nil {
			return nil, err
		}
		if ch.table.SharedGeometry {
			if key == "" {
				doc[ch.table.KeyField] = nil
			} else {
				doc[ch.table.KeyField] = key
			}
		}
		synced = append(synced, ch.table.Name)
	}

	var after []haltRow
	if len(haltTables) > 0 {
		if after, err = rec.readHalts(ctx, t, patternKey); err != nil {
			return nil, err
		}
		if err := checkHaltSequences(after); err != nil {
			return nil, err
		}
	}

	refs := newReferenceSet(t.Name)
	refs.add(t, doc, synced...)
	if err := (referenceChecker{tx: tx}).verify(ctx, refs); err != nil {
		return nil, err
	}

	if !usesFrequency && t.FrequencyFlag != "" && !creating {
		if err := w.dropFrequencies(ctx, tx, patternKey); err != nil {
			return nil, err
		}
	}
	if len(haltTables) > 0 {
		if err := rec.reconcile(ctx, patternKey, before, after, usesFrequency); err != nil {
			return nil, err
		}
	}
	if err := (linkedPropagator{tx: tx}).propagateAll(ctx, t, doc); err != nil {
		return nil, err
	}

	tx.log.Debugw("saved", "table", t.Name, "id", id, "created", creating, "children", len(children))
	return doc, nil
}

type collection struct {
	table *types.Table
	docs  []types.Document
}

// collections extracts the child collections of doc. A missing collection
// is an error unless the child table defaults to empty.
func (w *tableWriter) collections(tx *txn, doc types.Document) ([]collection, error) {
	var out []collection
	for _, child := range tx.catalog.Children(w.table.Name) {
		docs, present, err := doc.Children(child.Name)
		if err != nil {
			return nil, types.Validationf(w.table.Name, child.Name, nil, "%s.%s: %v", w.table.Name, child.Name, err)
		}
		if !present {
			if !child.DefaultEmpty {
				return nil, types.Validationf(w.table.Name, child.Name, doc[child.Name],
					"%s object must contain a %s array", w.table.Name, child.Name)
			}
			doc[child.Name] = []types.Document{}
		}
		out = append(out, collection{table: child, docs: docs})
	}
	return out, nil
}

// insert writes the primary row and returns its new id.
func (w *tableWriter) insert(ctx context.Context, tx *txn, row []any) (int64, error) {
	s := insertStmt(tx.d, w.table, [][]any{row}).sql(" RETURNING id")
	ids, err := tx.ints(ctx, s)
	if err != nil {
		return 0, err
	}
	return insertedID(s.op, ids)
}

// insertedID picks the id an INSERT ... RETURNING produced. No id is a
// storage failure, unlike an update or delete that matched no row.
func insertedID(op string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, &types.StorageError{Op: op, Err: errNoID}
	}
	return ids[0], nil
}

// usesFrequency reports whether doc belongs to a frequency-based pattern:
// the flag itself on the pattern table, or the flag of the referenced
// pattern for tables that point at one.
func (w *tableWriter) usesFrequency(ctx context.Context, tx *txn, doc types.Document) (bool, error) {
	src, ok := tx.catalog.FrequencySource()
	if !ok {
		return false, nil
	}
	if w.table.Name == src.Name {
		v, _ := types.Int64(doc[src.FrequencyFlag])
		return v == 1, nil
	}
	if w.table.KeyField == src.KeyField || !w.table.HasField(src.KeyField) {
		return false, nil
	}
	key, ok := doc.Text(src.KeyField)
	if !ok || key == "" {
		return false, nil
	}
	flags, err := tx.ints(ctx, tx.stmt("reading "+src.Name+"."+src.FrequencyFlag).
		sql("SELECT COALESCE(").ident(src.FrequencyFlag).sql(", 0) FROM ").ident(src.Name).
		sql(" WHERE ").ident(src.KeyField).sql(" = ").param(key))
	if err != nil {
		return false, err
	}
	return len(flags) > 0 && flags[0] == 1, nil
}

// dropFrequencies removes frequency rows of the pattern's trips once the
// pattern is no longer frequency based.
func (w *tableWriter) dropFrequencies(ctx context.Context, tx *txn, patternKey string) error {
	for _, t := range tx.catalog.Tables() {
		if !t.FrequencyOnly {
			continue
		}
		parent, err := tx.table(t.ParentTable)
		if err != nil {
			return err
		}
		if !parent.HasField(w.table.KeyField) {
			continue
		}
		n, err := tx.exec(ctx, tx.stmt("dropping "+t.Name).
			sql("DELETE FROM ").ident(t.Name).sql(" WHERE ").ident(t.KeyField).
			sql(" IN (SELECT ").ident(parent.KeyField).sql(" FROM ").ident(parent.Name).
			sql(" WHERE ").ident(w.table.KeyField).sql(" = ").param(patternKey).sql(")"))
		if err != nil {
			return err
		}
		if n > 0 {
			tx.log.Infow("removed frequencies of timetable pattern", "table", t.Name, "key", patternKey, "rows", n)
		}
	}
	return nil
}

// Delete removes the row with the given id after cascading to the rows
// that reference it.
func (w *tableWriter) Delete(ctx context.Context, id int64, autoCommit bool) (int, error) {
	var deleted int
	err := w.run("delete", autoCommit, func(tx *txn) error {
		var err error
		deleted, err = w.deleteByID(ctx, tx, id)
		return err
	})
	return deleted, err
}

// DeleteWhere deletes every row whose field equals value. Matching no row
// is not an error.
func (w *tableWriter) DeleteWhere(ctx context.Context, field, value string, autoCommit bool) (int, error) {
	var deleted int
	err := w.run("delete", autoCommit, func(tx *txn) error {
		f, ok := w.table.Field(field)
		if !ok {
			return types.Validationf(w.table.Name, field, nil, "%s has no field %s", w.table.Name, field)
		}
		v, err := bindValue(w.table.Name, f, value)
		if err != nil {
			return err
		}
		ids, err := tx.ints(ctx, tx.stmt("selecting "+w.table.Name+" ids").
			sql("SELECT id FROM ").ident(w.table.Name).sql(" WHERE ").ident(field).sql(" = ").param(v).
			sql(" ORDER BY id"))
		if err != nil {
			return err
		}
		for _, id := range ids {
			n, err := w.deleteByID(ctx, tx, id)
			if err != nil {
				return err
			}
			deleted += n
		}
		tx.log.Debugw("deleted where", "table", w.table.Name, "field", field, "value", value, "rows", deleted)
		return nil
	})
	return deleted, err
}

func (w *tableWriter) deleteByID(ctx context.Context, tx *txn, id int64) (int, error) {
	t := w.table
	key, valid, found, err := tx.keyForID(ctx, t, t.KeyField, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &types.NotFoundError{Table: t.Name, ID: id}
	}
	c := newCascade(tx)
	if valid && key != "" {
		sharing := 1
		if !t.UniqueKey() {
			sharing, err = tx.count(ctx, tx.stmt("counting "+t.Name+" rows").
				sql("SELECT COUNT(*) FROM ").ident(t.Name).sql(" WHERE ").ident(t.KeyField).sql(" = ").param(key))
			if err != nil {
				return 0, err
			}
		}
		if sharing <= 1 {
			if err := c.deleteReferences(ctx, t, key); err != nil {
				return 0, err
			}
		}
	}
	if err := c.noteGeometry(ctx, t, types.IDField, id); err != nil {
		return 0, err
	}
	n, err := tx.exec(ctx, tx.stmt("deleting "+t.Name).
		sql("DELETE FROM ").ident(t.Name).sql(" WHERE id = ").param(id))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, &types.NotFoundError{Table: t.Name, ID: id}
	}
	if _, err := c.prune(ctx); err != nil {
		return 0, err
	}
	tx.log.Infow("deleted", "table", t.Name, "id", id, "key", key)
	return int(n), nil
}

// NormalizeStopTimesForPattern recomputes the stop times of every trip on
// the pattern from the halt at fromSequence onward, then commits.
func (w *tableWriter) NormalizeStopTimesForPattern(ctx context.Context, patternID int64, fromSequence int64) (int, error) {
	var updated int
	err := w.run("normalize", true, func(tx *txn) error {
		pattern := w.table
		if len(tx.catalog.HaltTables(pattern.Name)) == 0 {
			var err error
			if pattern, err = tx.table(types.TablePatterns); err != nil {
				return err
			}
		}
		key, valid, found, err := tx.keyForID(ctx, pattern, pattern.KeyField, patternID)
		if err != nil {
			return err
		}
		if !found {
			return &types.NotFoundError{Table: pattern.Name, ID: patternID}
		}
		if !valid || key == "" {
			return types.Validationf(pattern.Name, pattern.KeyField, nil,
				"%s %d has no %s", pattern.Name, patternID, pattern.KeyField)
		}
		updated, err = reconciler{tx: tx, linked: linkedPropagator{tx: tx}}.normalize(ctx, pattern, key, fromSequence)
		return err
	})
	if err == nil {
		w.s.metrics.normalized.Add(float64(updated))
	}
	return updated, err
}

// ForTable returns a writer for another table in the same transaction.
func (w *tableWriter) ForTable(name string) (types.TableWriter, error) {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if w.s.closed {
		return nil, types.ErrWriterClosed
	}
	t, err := w.s.tx.table(name)
	if err != nil {
		return nil, err
	}
	return newTableWriter(w.s, t), nil
}

// Commit commits the transaction and closes the writer.
func (w *tableWriter) Commit() error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if w.s.closed {
		return types.ErrWriterClosed
	}
	return w.s.commit()
}

// Close rolls back uncommitted work. Idempotent.
func (w *tableWriter) Close() error {
	w.s.mu.Lock()
	defer w.s.mu.Unlock()

	if w.s.closed {
		return nil
	}
	w.s.rollback(nil)
	w.s.tx.log.Debugw("writer closed without commit", "table", w.table.Name)
	return nil
}
