package types

import "context"

// Store is the backend-agnostic entry point. Callers attach to a backend,
// open writers and readers by table name, and detach when done.
type Store interface {
	// Attach connects the Store to the backend described by config and
	// creates any missing catalog tables. Returns ErrAlreadyAttached if
	// called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// Writer opens a TableWriter for the named table. The writer holds one
	// transaction until it commits, fails, or is closed.
	Writer(ctx context.Context, table string) (TableWriter, error)

	// Reader returns a TableReader for the named table.
	Reader(table string) (TableReader, error)
}

// TableWriter applies create, update, and delete operations to one table
// and every table that depends on it, inside a single transaction.
//
// With autoCommit set, a successful call commits and closes the writer.
// Without it the transaction stays open for further calls, which may target
// other tables through ForTable, until Commit or Close. Any failure rolls
// the transaction back and closes the writer; later calls return
// ErrWriterClosed.
type TableWriter interface {
	// Create inserts doc and its child collections. Returns the persisted
	// document with id set.
	Create(ctx context.Context, doc Document, autoCommit bool) (Document, error)

	// Update rewrites the row with the given id and replaces its child
	// collections.
	Update(ctx context.Context, id int64, doc Document, autoCommit bool) (Document, error)

	// CreateAll creates every document; all succeed or none do.
	CreateAll(ctx context.Context, docs []Document, autoCommit bool) ([]Document, error)

	// UpdateAll updates every document by its id field, creating those
	// without one; all succeed or none do.
	UpdateAll(ctx context.Context, docs []Document, autoCommit bool) ([]Document, error)

	// Delete removes the row with the given id after cascading to
	// referencing rows. Returns the number of rows deleted from this table.
	Delete(ctx context.Context, id int64, autoCommit bool) (int, error)

	// DeleteWhere deletes every row whose field equals value.
	DeleteWhere(ctx context.Context, field, value string, autoCommit bool) (int, error)

	// NormalizeStopTimesForPattern recomputes stop times for every trip of
	// the pattern with the given id, starting at the halt with sequence
	// fromSequence, and commits. Returns the number of stop times updated.
	NormalizeStopTimesForPattern(ctx context.Context, patternID int64, fromSequence int64) (int, error)

	// ForTable returns a writer for another table sharing this writer's
	// transaction.
	ForTable(name string) (TableWriter, error)

	// Commit commits the open transaction and closes the writer.
	Commit() error

	// Close rolls back any uncommitted work. Idempotent.
	Close() error
}

// TableReader reads rows of one table.
type TableReader interface {
	// Get returns the row with the given id.
	Get(ctx context.Context, id int64) (Document, error)

	// GetOrdered returns the rows whose key field equals key, sorted by the
	// table's order field (or id when the table has none).
	GetOrdered(ctx context.Context, key string) ([]Document, error)

	// Where returns the rows whose field equals value, sorted by id.
	Where(ctx context.Context, field, value string) ([]Document, error)
}
