// This file implements batched reference checks. A reference field may name
// several candidate tables; a value is valid when any of them holds it.
package sqlite

import (
	"context"
	"sort"

	"github.com/mesh-intelligence/timetable/pkg/types"
)

// fieldRefs holds the distinct values one reference field carried across a
// batch of rows.
type fieldRefs struct {
	field      types.Field
	candidates []string
	values     []string
	seen       map[string]bool
}

// referenceSet accumulates reference values for a batch of rows of one
// table so existence can be checked once per referenced table.
type referenceSet struct {
	table  string
	fields map[string]*fieldRefs
	order  []string
}

func newReferenceSet(table string) *referenceSet {
	return &referenceSet{table: table, fields: make(map[string]*fieldRefs)}
}

// add records every reference value of doc. Candidate tables named in skip
// are ignored; a field left with no candidates is not checked.
func (rs *referenceSet) add(t *types.Table, doc types.Document, skip ...string) {
	for _, f := range t.Fields {
		if !f.IsReference() {
			continue
		}
		raw := doc[f.Name]
		if raw == nil {
			continue
		}
		fr := rs.fields[f.Name]
		if fr == nil {
			fr = &fieldRefs{field: f, seen: make(map[string]bool)}
			for _, c := range f.References {
				if !contains(skip, c) {
					fr.candidates = append(fr.candidates, c)
				}
			}
			rs.fields[f.Name] = fr
			rs.order = append(rs.order, f.Name)
		}
		if len(fr.candidates) == 0 {
			continue
		}
		var values []string
		if f.Type == types.FieldStringList {
			values, _ = stringList(raw)
		} else {
			values = []string{types.Text(raw)}
		}
		for _, v := range values {
			if v == "" || fr.seen[v] {
				continue
			}
			fr.seen[v] = true
			fr.values = append(fr.values, v)
		}
	}
}

// referenceChecker verifies that accumulated references exist. A field
// with several candidate tables is satisfied by any one of them; the
// search stops as soon as every value has been found.
type referenceChecker struct {
	tx *txn
}

func (c referenceChecker) verify(ctx context.Context, rs *referenceSet) error {
	for _, name := range rs.order {
		fr := rs.fields[name]
		pending := fr.values
		for _, candidate := range fr.candidates {
			if len(pending) == 0 {
				break
			}
			found, err := c.existing(ctx, candidate, pending)
			if err != nil {
				return err
			}
			var rest []string
			for _, v := range pending {
				if !found[v] {
					rest = append(rest, v)
				}
			}
			pending = rest
		}
		if len(pending) > 0 {
			missing := append([]string(nil), pending...)
			sort.Strings(missing)
			c.tx.log.Warnw("invalid references", "table", rs.table, "field", name, "values", missing)
			return &types.ReferenceError{Table: rs.table, Field: name, Values: missing, Candidates: fr.candidates}
		}
		c.tx.log.Debugw("references valid", "table", rs.table, "field", name, "count", len(fr.values))
	}
	return nil
}

// existing returns which values are present as keys of the named table.
func (c referenceChecker) existing(ctx context.Context, table string, values []string) (map[string]bool, error) {
	t, err := c.tx.table(table)
	if err != nil {
		return nil, err
	}
	found := make(map[string]bool, len(values))
	for _, part := range chunk(values, c.tx.d.maxParams()) {
		s := c.tx.stmt("checking "+table+" references").
			sql("SELECT ").ident(t.KeyField).sql(" FROM ").ident(t.Name).
			sql(" WHERE ").ident(t.KeyField).inList(part)
		keys, err := c.tx.strings(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			found[k] = true
		}
	}
	return found, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
