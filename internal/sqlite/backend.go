// Package sqlite implements the schedule store on database/sql. The same
// engine serves SQLite (modernc.org/sqlite) and PostgreSQL (pgx); the
// differences live in dialect.go.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// DatabaseFile is the SQLite file created under Config.DataDir.
const DatabaseFile = "timetable.db"

var _ types.Store = (*Backend)(nil)

// Backend implements types.Store over a SQL database.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	d        dialect
	catalog  *types.Catalog
	log      *zap.SugaredLogger
	metrics  *metrics
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach validates config, opens the database, and creates any missing
// catalog tables. Existing data is kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	d, err := dialectFor(config.Backend)
	if err != nil {
		return err
	}

	log := config.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	catalog := config.Catalog
	if catalog == nil {
		catalog = types.StandardCatalog()
	}
	m, err := newMetrics(config.Registerer)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	dsn, err := dataSource(config)
	if err != nil {
		return err
	}
	db, err := sql.Open(d.driver(), dsn)
	if err != nil {
		return &types.StorageError{Op: "opening database", Err: err}
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &types.StorageError{Op: "connecting", Err: err}
	}
	if err := createSchema(ctx, db, d, catalog); err != nil {
		db.Close()
		return err
	}

	b.db = db
	b.d = d
	b.config = config
	b.catalog = catalog
	b.log = log
	b.metrics = m
	b.attached = true
	log.Infow("store attached", "backend", config.Backend, "tables", len(catalog.Tables()),
		"insert_batch_size", config.BatchSize())
	return nil
}

// dataSource returns the driver connection string for config.
func dataSource(config types.Config) (string, error) {
	if config.Backend == types.BackendPostgres {
		return config.DSN, nil
	}
	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	return filepath.Join(dataDir, DatabaseFile) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", nil
}

// Detach closes the database. After Detach, all operations return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	b.log.Infow("store detached", "backend", b.config.Backend)
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	return nil
}

// Writer opens a transaction and returns a writer for the named table.
func (b *Backend) Writer(ctx context.Context, table string) (types.TableWriter, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	t, ok := b.catalog.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &types.StorageError{Op: "beginning transaction", Err: err}
	}
	s := &session{
		tx: &txn{
			tx:        tx,
			d:         b.d,
			catalog:   b.catalog,
			log:       b.log.With("table", table),
			batchSize: b.config.BatchSize(),
		},
		metrics: b.metrics,
	}
	return newTableWriter(s, t), nil
}

// Reader returns a reader for the named table. Reads see committed data.
func (b *Backend) Reader(table string) (types.TableReader, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}
	t, ok := b.catalog.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrTableNotFound, table)
	}
	return newTableReader(b.db, b.d, t), nil
}

// newKey generates a key for generated trip ids and forked geometry.
func newKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to UUID v4 if v7 generation fails
		return uuid.New().String()
	}
	return id.String()
}
