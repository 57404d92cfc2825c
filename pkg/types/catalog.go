package types

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCatalog reports a table definition the engine cannot use.
var ErrInvalidCatalog = errors.New("invalid catalog")

// identPattern is the allow-list for table and column names. Every name
// that reaches SQL text passes through it.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name may be used as a table or column
// name.
func ValidIdentifier(name string) bool { return identPattern.MatchString(name) }

var catalogValidator = newCatalogValidator()

func newCatalogValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("ident", func(fl validator.FieldLevel) bool {
		return ValidIdentifier(fl.Field().String())
	})
	return v
}

// Catalog is a validated, ordered set of tables.
type Catalog struct {
	tables []*Table
	byName map[string]*Table
}

// NewCatalog validates the tables and builds a Catalog. Order is kept and
// is the order in which schemas are created.
func NewCatalog(tables ...Table) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Table, len(tables))}
	for i := range tables {
		t := tables[i]
		if err := catalogValidator.Struct(t); err != nil {
			return nil, fmt.Errorf("%w: table %q: %v", ErrInvalidCatalog, t.Name, err)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate table %q", ErrInvalidCatalog, t.Name)
		}
		c.tables = append(c.tables, &t)
		c.byName[t.Name] = &t
	}
	for _, t := range c.tables {
		if err := c.check(t); err != nil {
			return nil, fmt.Errorf("%w: table %q: %v", ErrInvalidCatalog, t.Name, err)
		}
	}
	return c, nil
}

func (c *Catalog) check(t *Table) error {
	seen := make(map[string]bool, len(t.Fields))
	for _, f := range t.Fields {
		if f.Name == IDField {
			return fmt.Errorf("field %q is reserved", IDField)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		for _, ref := range f.References {
			if _, ok := c.byName[ref]; !ok {
				return fmt.Errorf("field %q references unknown table %q", f.Name, ref)
			}
		}
	}
	if !t.HasField(t.KeyField) {
		return fmt.Errorf("key field %q is not declared", t.KeyField)
	}
	if t.OrderField != "" {
		f, ok := t.Field(t.OrderField)
		if !ok || f.Type != FieldInteger {
			return fmt.Errorf("order field %q must be a declared integer field", t.OrderField)
		}
	}
	if t.ParentTable != "" {
		parent, ok := c.byName[t.ParentTable]
		if !ok {
			return fmt.Errorf("unknown parent table %q", t.ParentTable)
		}
		if parent.KeyField != t.KeyField {
			return fmt.Errorf("key field %q does not match parent key %q", t.KeyField, parent.KeyField)
		}
	}
	for _, dep := range t.Dependents {
		d, ok := c.byName[dep]
		if !ok {
			return fmt.Errorf("unknown dependent table %q", dep)
		}
		if !t.HasField(d.KeyField) {
			return fmt.Errorf("dependent %q needs field %q", dep, d.KeyField)
		}
	}
	if t.FrequencyFlag != "" && !t.HasField(t.FrequencyFlag) {
		return fmt.Errorf("frequency flag %q is not declared", t.FrequencyFlag)
	}
	if h := t.Halt; h != nil {
		if t.ParentTable == "" || t.OrderField == "" {
			return errors.New("halt tables need a parent and an order field")
		}
		for _, name := range []string{h.RefField, h.TravelField, h.DwellField} {
			if !t.HasField(name) {
				return fmt.Errorf("halt field %q is not declared", name)
			}
		}
	}
	for _, l := range t.Linked {
		target, ok := c.byName[l.Table]
		if !ok {
			return fmt.Errorf("linked table %q is unknown", l.Table)
		}
		if !t.HasField(l.KeyField) {
			return fmt.Errorf("linked key %q is not declared", l.KeyField)
		}
		for _, name := range l.Fields {
			if !t.HasField(name) || !target.HasField(name) {
				return fmt.Errorf("linked field %q must exist on %q and %q", name, t.Name, l.Table)
			}
		}
		if l.OrderField != "" && (!t.HasField(l.OrderField) || !target.HasField(l.OrderField)) {
			return fmt.Errorf("linked order field %q must exist on %q and %q", l.OrderField, t.Name, l.Table)
		}
		if (l.Through == "") != (l.ThroughKey == "") {
			return errors.New("linked Through and ThroughKey must be set together")
		}
		if l.Through != "" {
			through, ok := c.byName[l.Through]
			if !ok || !through.HasField(l.KeyField) || !through.HasField(l.ThroughKey) || !target.HasField(l.ThroughKey) {
				return fmt.Errorf("linked join through %q is not usable", l.Through)
			}
		} else if !target.HasField(l.KeyField) {
			return fmt.Errorf("linked key %q is not declared on %q", l.KeyField, l.Table)
		}
	}
	return nil
}

// Table returns the named table.
func (c *Catalog) Table(name string) (*Table, bool) {
	t, ok := c.byName[name]
	return t, ok
}

// Tables returns every table in catalog order.
func (c *Catalog) Tables() []*Table {
	return c.tables
}

// Referencing returns the tables, other than target itself, that declare a
// field referencing target.
func (c *Catalog) Referencing(target string) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.Name == target {
			continue
		}
		for _, f := range t.Fields {
			if f.ReferencesTable(target) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Children returns the tables synchronized when a parent row is saved: the
// tables naming parent as ParentTable, then the parent's Dependents.
func (c *Catalog) Children(parent string) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.ParentTable == parent {
			out = append(out, t)
		}
	}
	if p, ok := c.byName[parent]; ok {
		for _, dep := range p.Dependents {
			out = append(out, c.byName[dep])
		}
	}
	return out
}

// HaltTables returns the pattern halt tables whose parent is parent.
func (c *Catalog) HaltTables(parent string) []*Table {
	var out []*Table
	for _, t := range c.tables {
		if t.Halt != nil && t.ParentTable == parent {
			out = append(out, t)
		}
	}
	return out
}

// FrequencySource returns the table carrying the frequency flag.
func (c *Catalog) FrequencySource() (*Table, bool) {
	for _, t := range c.tables {
		if t.FrequencyFlag != "" {
			return t, true
		}
	}
	return nil, false
}
