package pgsqldb

import "sort"

// ColumnSpec is a single column as reported by the system catalog.
type ColumnSpec struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Ordinal int    `json:"ordinal"`
}

// TableSpec is a relation and its columns in catalog order.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// Catalog maps table names to their specs and iterates in the order tables
// were first seen in the catalog query's result stream.
type Catalog struct {
	names  []string
	tables map[string]*TableSpec
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*TableSpec)}
}

// AddColumn appends col to table, creating the table entry on first sight.
func (c *Catalog) AddColumn(table string, col ColumnSpec) {
	spec, ok := c.tables[table]
	if !ok {
		spec = &TableSpec{Name: table}
		c.tables[table] = spec
		c.names = append(c.names, table)
	}
	spec.Columns = append(spec.Columns, col)
}

// Names returns table names in first-seen order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Table returns the TableSpec for name.
func (c *Catalog) Table(name string) (*TableSpec, bool) {
	spec, ok := c.tables[name]
	return spec, ok
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return len(c.names)
}

// TableSet is an unordered set of table names.
type TableSet map[string]struct{}

// NewTableSet builds a set from names. Duplicates collapse.
func NewTableSet(names ...string) TableSet {
	s := make(TableSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s TableSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Minus returns the names of s that are not in other.
func (s TableSet) Minus(other TableSet) TableSet {
	out := make(TableSet, len(s))
	for n := range s {
		if !other.Has(n) {
			out[n] = struct{}{}
		}
	}
	return out
}

// Sorted returns the names in lexical order.
func (s TableSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// FetchMode selects how many rows Run returns.
type FetchMode string

const (
	// FetchAll returns every row.
	FetchAll FetchMode = "all"
	// FetchOne returns the first column of the first row.
	FetchOne FetchMode = "one"
)

// Result is the outcome of Run. The zero value is the empty marker: the
// statement ran and there is nothing to show.
type Result struct {
	Columns []string
	Rows    [][]any
	// Value holds the single cell returned in FetchOne mode.
	Value any

	one bool
}

// Empty reports whether r is the empty marker. A fetched result with no
// columns and no rows, such as DDL whose text mentions "select", counts too.
func (r *Result) Empty() bool {
	return len(r.Columns) == 0 && len(r.Rows) == 0 && !r.one
}
