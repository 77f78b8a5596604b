// Package datatable implements Stockly's server-side data tables: untrusted
// query parameters are parsed and validated into a State, mapped onto the
// column references a Table declares, executed as a tenant-scoped query and
// returned as a Page.
//
// The State can round-trip through an encrypted URL token (see Codec). The
// token only saves the client from rebuilding long query strings; whatever it
// decodes to is validated again like plain parameters, and tenant scoping is
// always taken from the server side Scope.
package datatable

import "fmt"

// ColumnType drives how filter values are parsed and compared.
type ColumnType string

const (
	Text   ColumnType = "text"
	Number ColumnType = "number"
	Enum   ColumnType = "enum"
	Bool   ColumnType = "bool"
	Date   ColumnType = "date"
)

// Column maps a public column id onto a SQL expression.
type Column struct {
	ID         string
	Expr       string
	Type       ColumnType
	Sortable   bool
	Filterable bool
	Searchable bool
	Options    []string
}

func (c Column) hasOption(v string) bool {
	for _, o := range c.Options {
		if o == v {
			return true
		}
	}
	return false
}

// Order is a sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Table describes one listable resource.
//
// From may contain joins. Key is the unique row expression used as the sort
// tiebreaker. When ScopeColumn is set every query is restricted to the
// caller's company.
type Table struct {
	Name         string
	From         string
	Select       []string
	Key          string
	Columns      []Column
	DefaultSort  string
	DefaultOrder Order
	ScopeColumn  string

	byID map[string]Column
}

// Column returns the column with the given public id.
func (t *Table) Column(id string) (Column, bool) {
	if t.byID != nil {
		c, ok := t.byID[id]
		return c, ok
	}
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

func (t *Table) searchable() []Column {
	var cols []Column
	for _, c := range t.Columns {
		if c.Searchable {
			cols = append(cols, c)
		}
	}
	return cols
}

func (t *Table) index() {
	t.byID = make(map[string]Column, len(t.Columns))
	for _, c := range t.Columns {
		t.byID[c.ID] = c
	}
}

// MustValidate panics when the table definition is inconsistent. Tables are
// package level values, so this runs at init time.
func (t *Table) MustValidate() *Table {
	if t.Name == "" || t.From == "" || t.Key == "" || len(t.Select) == 0 {
		panic(fmt.Sprintf("datatable: table %q is missing name, from, key or select", t.Name))
	}
	t.index()
	if len(t.byID) != len(t.Columns) {
		panic(fmt.Sprintf("datatable: table %q has duplicate column ids", t.Name))
	}
	for _, c := range t.Columns {
		if c.Expr == "" {
			panic(fmt.Sprintf("datatable: column %s.%s has no expression", t.Name, c.ID))
		}
		if c.Type == Enum && len(c.Options) == 0 {
			panic(fmt.Sprintf("datatable: enum column %s.%s has no options", t.Name, c.ID))
		}
	}
	def, ok := t.byID[t.DefaultSort]
	if !ok || !def.Sortable {
		panic(fmt.Sprintf("datatable: table %q default sort %q is not a sortable column", t.Name, t.DefaultSort))
	}
	if t.DefaultOrder != Asc && t.DefaultOrder != Desc {
		panic(fmt.Sprintf("datatable: table %q has invalid default order", t.Name))
	}
	return t
}
