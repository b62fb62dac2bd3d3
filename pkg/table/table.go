package table

import (
	"fmt"
	"strings"
)

// Table is an ordered set of equal-length columns.
type Table struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a table, checking that names are unique and lengths agree.
func New(cols ...*Column) (*Table, error) {
	t := &Table{
		cols:  make([]*Column, 0, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	for i, c := range cols {
		if c == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", c.Name, c.Len(), t.rows)
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Empty returns a table with no columns and no rows.
func Empty() *Table {
	t, _ := New()
	return t
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	if t == nil {
		return 0
	}
	return len(t.cols)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.NumRows() == 0
}

// Columns returns the columns in order. The slice is a copy; the columns are
// shared and must not be modified.
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Drop returns a table without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	kept := make([]*Column, 0, len(t.cols))
	for _, c := range t.cols {
		if !skip[c.Name] {
			kept = append(kept, c)
		}
	}
	out, _ := New(kept...)
	if len(kept) == 0 {
		out.rows = t.rows
	}
	return out
}

// With returns a table with col appended, or replacing the column of the same
// name in place.
func (t *Table) With(col *Column) (*Table, error) {
	cols := t.Columns()
	if i, ok := t.index[col.Name]; ok {
		cols[i] = col
	} else {
		cols = append(cols, col)
	}
	return New(cols...)
}

// Take returns the given rows of every column.
func (t *Table) Take(rows []uint32) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.Take(rows)
	}
	out, _ := New(cols...)
	out.rows = len(rows)
	return out
}

// Schema returns a printable "name:kind" list.
func (t *Table) Schema() string {
	parts := make([]string, len(t.cols))
	for i, c := range t.cols {
		parts[i] = c.Name + ":" + c.Kind.String()
	}
	return strings.Join(parts, ", ")
}

// Concat joins tables row-wise. All non-empty inputs must share the column
// names, order and kinds of the first one; tables with no columns are
// skipped. A nil or empty input list yields an empty table.
func Concat(tables ...*Table) (*Table, error) {
	var parts []*Table
	for _, t := range tables {
		if t != nil && t.NumCols() > 0 {
			parts = append(parts, t)
		}
	}
	switch len(parts) {
	case 0:
		return Empty(), nil
	case 1:
		return parts[0], nil
	}

	ref := parts[0]
	cols := make([]*Column, len(ref.cols))
	for i, c := range ref.cols {
		group := make([]*Column, len(parts))
		for j, p := range parts {
			if p.NumCols() != ref.NumCols() {
				return nil, fmt.Errorf("table %d has columns [%s], expected [%s]", j, p.Schema(), ref.Schema())
			}
			pc := p.cols[i]
			if pc.Name != c.Name {
				return nil, fmt.Errorf("table %d column %d is %q, expected %q", j, i, pc.Name, c.Name)
			}
			group[j] = pc
		}
		joined, err := concatColumns(group)
		if err != nil {
			return nil, err
		}
		cols[i] = joined
	}
	return New(cols...)
}
