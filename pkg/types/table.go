package types

// FieldType selects how a field is stored and bound.
type FieldType string

// Field types.
const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDouble  FieldType = "double"
	// FieldTime holds seconds since midnight. Input may also be HH:MM:SS.
	FieldTime FieldType = "time"
	// FieldStringList holds a list of strings, each of which is checked
	// against the field's reference tables.
	FieldStringList FieldType = "string_list"
)

// Field describes one column of a table.
type Field struct {
	Name                string    `validate:"required,ident"`
	Type                FieldType `validate:"oneof=string integer double time string_list"`
	Required            bool
	EmptyValuePermitted bool
	// References names the tables whose key field this field points at. With
	// more than one entry the reference is disjunctive: the value must exist
	// in at least one of them.
	References []string `validate:"dive,ident"`
}

// IsReference reports whether the field points at another table.
func (f Field) IsReference() bool { return len(f.References) > 0 }

// ReferencesTable reports whether name is one of the field's candidates.
func (f Field) ReferencesTable(name string) bool {
	for _, r := range f.References {
		if r == name {
			return true
		}
	}
	return false
}

// KeyPolicy controls how a missing key value is handled on save.
type KeyPolicy int

const (
	// KeyRequired rejects a missing key value.
	KeyRequired KeyPolicy = iota
	// KeyGenerated assigns a new UUID when the key value is missing.
	KeyGenerated
	// KeyOptionalWhenSingle allows a missing key while the table holds at
	// most one row (the row being saved).
	KeyOptionalWhenSingle
)

// Ordering is the rule an order field must follow within one child
// collection.
type Ordering int

const (
	// OrderContiguous requires the values 0..n-1 in input order.
	OrderContiguous Ordering = iota
	// OrderIncreasing requires unique, strictly increasing values; gaps are
	// allowed.
	OrderIncreasing
)

// HaltSpec marks a table as one of the pattern halt kinds and names the
// columns that carry its reference and default timing.
type HaltSpec struct {
	Kind        HaltKind `validate:"oneof=stop location location_group"`
	RefField    string   `validate:"required,ident"`
	TravelField string   `validate:"required,ident"`
	DwellField  string   `validate:"required,ident"`
}

// LinkedFields copies Fields from a saved entity into every row of Table
// whose KeyField matches the entity's value for KeyField. With Through set,
// the key is matched on the Through table and rows of Table are joined to
// it by ThroughKey. With OrderField set, rows must also share the entity's
// order value.
type LinkedFields struct {
	Table      string   `validate:"required,ident"`
	KeyField   string   `validate:"required,ident"`
	Fields     []string `validate:"required,dive,ident"`
	OrderField string   `validate:"omitempty,ident"`
	Through    string   `validate:"omitempty,ident"`
	ThroughKey string   `validate:"omitempty,ident"`
}

// Table describes one table of the catalog.
type Table struct {
	Name      string  `validate:"required,ident"`
	Fields    []Field `validate:"required,dive"`
	KeyField  string  `validate:"required,ident"`
	KeyPolicy KeyPolicy

	OrderField string `validate:"omitempty,ident"`
	Ordering   Ordering

	// ParentTable makes this table a child collection of the parent; rows
	// share the parent's key value in KeyField.
	ParentTable string `validate:"omitempty,ident"`
	// Dependents lists non-child tables synchronized with this table as if
	// they were children.
	Dependents []string `validate:"dive,ident"`
	// DefaultEmpty lets a parent document omit this collection; it is then
	// treated as an empty array.
	DefaultEmpty bool
	// SharedGeometry marks rows that several parents may reference by key.
	// Such rows are forked instead of rewritten when shared.
	SharedGeometry bool
	// FrequencyOnly rows are only allowed under frequency-based patterns.
	FrequencyOnly bool
	// FrequencyFlag names the boolean field that makes a row frequency based.
	FrequencyFlag string `validate:"omitempty,ident"`
	// CascadeRestricted blocks deletes while other rows reference the entity.
	CascadeRestricted bool

	Halt   *HaltSpec      `validate:"omitempty"`
	Linked []LinkedFields `validate:"dive"`
}

// Field returns the field with the given name.
func (t *Table) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the table declares name.
func (t *Table) HasField(name string) bool {
	_, ok := t.Field(name)
	return ok
}

// Key returns the key field.
func (t *Table) Key() Field {
	f, _ := t.Field(t.KeyField)
	return f
}

// UniqueKey reports whether key values identify a single row. Child
// collections and shared geometry repeat their key across rows.
func (t *Table) UniqueKey() bool {
	return t.ParentTable == "" && !t.SharedGeometry
}

// FieldNames returns the declared field names in order.
func (t *Table) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}
