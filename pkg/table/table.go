// Package table implements the in-memory columnar dataset that flows through
// the pipeline: one column per field, every column holding exactly Len()
// values, rows kept in input order.
package table

import (
	"slices"

	"github.com/sanonone/kektorviz/pkg/core/types"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Text columns are opaque metadata passed through unchanged.
	Text Kind = iota
	// Vector columns hold one fixed-length numeric vector per row.
	Vector
	// Float columns hold one scalar per row (coordinates, density).
	Float
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Vector:
		return "vector"
	case Float:
		return "float"
	}
	return "unknown"
}

// Column is a named, typed column. Only the slice matching Kind is populated.
type Column struct {
	Name    string
	Kind    Kind
	Text    []string
	Vectors [][]float64
	Floats  []float64
}

// Dim returns the vector length of a Vector column, 0 otherwise.
func (c *Column) Dim() int {
	if c.Kind != Vector || len(c.Vectors) == 0 {
		return 0
	}
	return len(c.Vectors[0])
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	switch c.Kind {
	case Text:
		out.Text = slices.Clone(c.Text)
	case Vector:
		out.Vectors = make([][]float64, len(c.Vectors))
		for i, v := range c.Vectors {
			out.Vectors[i] = slices.Clone(v)
		}
	case Float:
		out.Floats = slices.Clone(c.Floats)
	}
	return out
}

// Table is an ordered set of equally long columns.
type Table struct {
	rows int
	cols []*Column
}

// New returns an empty table with the given number of rows.
func New(rows int) *Table {
	return &Table{rows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	for _, c := range t.cols {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ColumnsOf returns the columns of the given kind, in order.
func (t *Table) ColumnsOf(kind Kind) []*Column {
	var out []*Column
	for _, c := range t.cols {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (t *Table) add(c *Column, n int) error {
	if c.Name == "" {
		return types.Inputf("column name must not be empty")
	}
	if _, exists := t.Column(c.Name); exists {
		return types.Inputf("column %q already exists", c.Name)
	}
	if n != t.rows {
		return types.Inputf("column %q has %d values, table has %d rows", c.Name, n, t.rows)
	}
	t.cols = append(t.cols, c)
	return nil
}

// AddText appends a text column.
func (t *Table) AddText(name string, values []string) error {
	return t.add(&Column{Name: name, Kind: Text, Text: values}, len(values))
}

// AddVectors appends a vector column. All vectors must share one length.
func (t *Table) AddVectors(name string, values [][]float64) error {
	if _, err := types.CheckDims(values); err != nil {
		return err
	}
	return t.add(&Column{Name: name, Kind: Vector, Vectors: values}, len(values))
}

// AddFloats appends a scalar column.
func (t *Table) AddFloats(name string, values []float64) error {
	return t.add(&Column{Name: name, Kind: Float, Floats: values}, len(values))
}

// Drop removes a column.
func (t *Table) Drop(name string) error {
	for i, c := range t.cols {
		if c.Name == name {
			t.cols = slices.Delete(t.cols, i, i+1)
			return nil
		}
	}
	return types.Inputf("column %q not found", name)
}

// Clone returns a deep copy, so stages can work on their own table without
// touching the caller's.
func (t *Table) Clone() *Table {
	out := &Table{rows: t.rows, cols: make([]*Column, len(t.cols))}
	for i, c := range t.cols {
		out.cols[i] = c.clone()
	}
	return out
}

// Filter returns a new table holding only the rows for which keep returns
// true, in their original order.
func (t *Table) Filter(keep func(row int) bool) *Table {
	var idx []int
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			idx = append(idx, i)
		}
	}

	out := &Table{rows: len(idx), cols: make([]*Column, len(t.cols))}
	for ci, c := range t.cols {
		nc := &Column{Name: c.Name, Kind: c.Kind}
		switch c.Kind {
		case Text:
			nc.Text = make([]string, len(idx))
			for j, i := range idx {
				nc.Text[j] = c.Text[i]
			}
		case Vector:
			nc.Vectors = make([][]float64, len(idx))
			for j, i := range idx {
				nc.Vectors[j] = slices.Clone(c.Vectors[i])
			}
		case Float:
			nc.Floats = make([]float64, len(idx))
			for j, i := range idx {
				nc.Floats[j] = c.Floats[i]
			}
		}
		out.cols[ci] = nc
	}
	return out
}
