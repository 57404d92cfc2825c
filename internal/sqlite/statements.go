// This file implements the statement builder: quoted identifiers, bound
// parameters and the insert, update and select shapes the writer uses.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// stmt builds one SQL statement. Identifiers are checked against the
// identifier allow-list and quoted; values only ever enter as bound
// parameters.
type stmt struct {
	op   string
	d    dialect
	sb   strings.Builder
	args []any
	err  error
}

func newStmt(d dialect, op string) *stmt {
	return &stmt{op: op, d: d}
}

// sql appends trusted SQL text (keywords and punctuation only).
func (s *stmt) sql(parts ...string) *stmt {
	for _, p := range parts {
		s.sb.WriteString(p)
	}
	return s
}

// ident appends a quoted table or column name.
func (s *stmt) ident(name string) *stmt {
	if !types.ValidIdentifier(name) {
		if s.err == nil {
			s.err = fmt.Errorf("identifier %q is not allowed", name)
		}
		return s
	}
	s.sb.WriteByte('"')
	s.sb.WriteString(name)
	s.sb.WriteByte('"')
	return s
}

// idents appends a comma-separated list of quoted names.
func (s *stmt) idents(names []string) *stmt {
	for i, n := range names {
		if i > 0 {
			s.sb.WriteString(", ")
		}
		s.ident(n)
	}
	return s
}

// param appends a placeholder bound to v.
func (s *stmt) param(v any) *stmt {
	s.args = append(s.args, v)
	s.sb.WriteString(s.d.placeholder(len(s.args)))
	return s
}

// params appends a comma-separated list of placeholders.
func (s *stmt) params(vs []any) *stmt {
	for i, v := range vs {
		if i > 0 {
			s.sb.WriteString(", ")
		}
		s.param(v)
	}
	return s
}

// inList appends "IN (...)" for the given values.
func (s *stmt) inList(vs []string) *stmt {
	s.sb.WriteString(" IN (")
	for i, v := range vs {
		if i > 0 {
			s.sb.WriteString(", ")
		}
		s.param(v)
	}
	s.sb.WriteString(")")
	return s
}

func (s *stmt) String() string { return s.sb.String() }

// chunk splits values so that each piece, plus reserved fixed parameters,
// fits within the dialect's parameter limit.
func chunk[T any](values []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	var out [][]T
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	if len(values) > 0 {
		out = append(out, values)
	}
	return out
}

// insertStmt builds a multi-row INSERT of the given field values.
func insertStmt(d dialect, t *types.Table, rows [][]any) *stmt {
	s := newStmt(d, "inserting "+t.Name).
		sql("INSERT INTO ").ident(t.Name).sql(" (").idents(t.FieldNames()).sql(") VALUES ")
	for i, row := range rows {
		if i > 0 {
			s.sql(", ")
		}
		s.sql("(").params(row).sql(")")
	}
	return s
}

// updateStmt builds an UPDATE of every field of the row with the given id.
func updateStmt(d dialect, t *types.Table, id int64, row []any) *stmt {
	s := newStmt(d, "updating "+t.Name).sql("UPDATE ").ident(t.Name).sql(" SET ")
	for i, f := range t.Fields {
		if i > 0 {
			s.sql(", ")
		}
		s.ident(f.Name).sql(" = ").param(row[i])
	}
	return s.sql(" WHERE id = ").param(id)
}

// selectStmt builds a SELECT of id and every field of t.
func selectStmt(d dialect, t *types.Table, op string) *stmt {
	return newStmt(d, op).sql("SELECT id, ").idents(t.FieldNames()).sql(" FROM ").ident(t.Name)
}
