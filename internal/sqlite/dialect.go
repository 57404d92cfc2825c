// This file implements the SQL differences between SQLite and PostgreSQL.
package sqlite

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// dialect captures the SQL differences between the supported stores.
type dialect interface {
	// driver is the database/sql driver name.
	driver() string
	// placeholder returns the bind marker for the n-th (1-based) parameter.
	placeholder(n int) string
	// idColumn is the DDL for the surrogate id column.
	idColumn() string
	// columnType maps a field type to a column type.
	columnType(t types.FieldType) string
	// maxParams bounds the parameters of one statement.
	maxParams() int
	// uniqueViolation reports whether err was raised by a unique index.
	uniqueViolation(err error) bool
}

type sqliteDialect struct{}

func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) idColumn() string { return "id INTEGER PRIMARY KEY AUTOINCREMENT" }

func (sqliteDialect) columnType(t types.FieldType) string {
	switch t {
	case types.FieldInteger, types.FieldTime:
		return "INTEGER"
	case types.FieldDouble:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) maxParams() int { return 999 }

// The schema declares no constraint other than the key indexes, so any
// constraint failure is a duplicate key.
func (sqliteDialect) uniqueViolation(err error) bool {
	var e *msqlite.Error
	return errors.As(err, &e) && e.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

type postgresDialect struct{}

func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) idColumn() string { return "id BIGSERIAL PRIMARY KEY" }

func (postgresDialect) columnType(t types.FieldType) string {
	switch t {
	case types.FieldInteger, types.FieldTime:
		return "BIGINT"
	case types.FieldDouble:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func (postgresDialect) maxParams() int { return 65535 }

func (postgresDialect) uniqueViolation(err error) bool {
	var e *pgconn.PgError
	return errors.As(err, &e) && e.Code == "23505"
}

func dialectFor(backend string) (dialect, error) {
	switch backend {
	case types.BackendSQLite:
		return sqliteDialect{}, nil
	case types.BackendPostgres:
		return postgresDialect{}, nil
	}
	return nil, types.ErrBackendUnknown
}
