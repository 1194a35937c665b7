// Package frame provides the column-typed data table shared by an assessment
// run. A Frame is immutable once constructed: subsetting and column
// permutation always return fresh copies, so the engine can hand the same
// Frame to many workers without synchronization.
package frame

import (
	"fmt"
	"sort"
)

// Kind discriminates column value types.
type Kind int

const (
	KindNumeric Kind = iota
	KindFactor
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindFactor:
		return "factor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Column is a named, typed vector of observations.
//
// The interface is sealed: only Numeric and Factor implement it. Consumers
// switch on Kind() (or type-switch) to reach the values.
type Column interface {
	Name() string
	Kind() Kind
	Len() int

	// subset returns a copy holding values at the given row positions.
	subset(rows []int) Column
	// reordered returns a copy with values moved so that position i holds
	// the value previously at position perm[i].
	reordered(perm []int) Column
	// renamed returns a copy under a different name.
	renamed(name string) Column
}

// Numeric is a float64-valued column.
type Numeric struct {
	name   string
	values []float64
}

// NewNumeric copies values into a numeric column.
func NewNumeric(name string, values []float64) *Numeric {
	v := make([]float64, len(values))
	copy(v, values)
	return &Numeric{name: name, values: v}
}

func (c *Numeric) Name() string { return c.name }
func (c *Numeric) Kind() Kind   { return KindNumeric }
func (c *Numeric) Len() int     { return len(c.values) }

// Values returns the backing slice. Callers must treat it as read-only.
func (c *Numeric) Values() []float64 { return c.values }

func (c *Numeric) subset(rows []int) Column {
	v := make([]float64, len(rows))
	for i, r := range rows {
		v[i] = c.values[r]
	}
	return &Numeric{name: c.name, values: v}
}

func (c *Numeric) reordered(perm []int) Column {
	v := make([]float64, len(c.values))
	for i, p := range perm {
		v[i] = c.values[p]
	}
	return &Numeric{name: c.name, values: v}
}

func (c *Numeric) renamed(name string) Column {
	return &Numeric{name: name, values: c.values}
}

// Factor is a string-valued (categorical) column.
type Factor struct {
	name   string
	values []string
}

// NewFactor copies values into a factor column.
func NewFactor(name string, values []string) *Factor {
	v := make([]string, len(values))
	copy(v, values)
	return &Factor{name: name, values: v}
}

func (c *Factor) Name() string { return c.name }
func (c *Factor) Kind() Kind   { return KindFactor }
func (c *Factor) Len() int     { return len(c.values) }

// Values returns the backing slice. Callers must treat it as read-only.
func (c *Factor) Values() []string { return c.values }

// Levels returns the sorted set of distinct values.
func (c *Factor) Levels() []string {
	seen := make(map[string]struct{}, len(c.values))
	levels := make([]string, 0)
	for _, v := range c.values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		levels = append(levels, v)
	}
	sort.Strings(levels)
	return levels
}

func (c *Factor) subset(rows []int) Column {
	v := make([]string, len(rows))
	for i, r := range rows {
		v[i] = c.values[r]
	}
	return &Factor{name: c.name, values: v}
}

func (c *Factor) reordered(perm []int) Column {
	v := make([]string, len(c.values))
	for i, p := range perm {
		v[i] = c.values[p]
	}
	return &Factor{name: c.name, values: v}
}

func (c *Factor) renamed(name string) Column {
	return &Factor{name: name, values: c.values}
}

// Frame is an ordered collection of equal-length columns with unique names.
type Frame struct {
	cols  []Column
	index map[string]int
}

// New builds a Frame from the given columns. All columns must have the same
// length and distinct, non-empty names.
func New(cols ...Column) (*Frame, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("frame: no columns")
	}
	n := cols[0].Len()
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name() == "" {
			return nil, fmt.Errorf("frame: column %d has empty name", i)
		}
		if c.Len() != n {
			return nil, fmt.Errorf("frame: column %q has %d rows, want %d", c.Name(), c.Len(), n)
		}
		if _, dup := index[c.Name()]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c.Name())
		}
		index[c.Name()] = i
	}
	return &Frame{cols: cols, index: index}, nil
}

// NumRows returns the row count.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return f.cols[0].Len()
}

// Names returns column names in definition order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name()
	}
	return names
}

// Column looks up a column by name.
func (f *Frame) Column(name string) (Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.cols[i], true
}

// Select returns a new Frame holding copies of the given rows, in the given
// order. Row indices may repeat (bootstrap-style draws are legal).
func (f *Frame) Select(rows []int) (*Frame, error) {
	n := f.NumRows()
	for _, r := range rows {
		if r < 0 || r >= n {
			return nil, fmt.Errorf("frame: row index %d out of range [0,%d)", r, n)
		}
	}
	cols := make([]Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.subset(rows)
	}
	return New(cols...)
}

// WithReordered returns a copy of the Frame in which the named column's
// values are rearranged by perm (position i receives the value previously at
// perm[i]); every other column is shared untouched. perm must be a
// permutation of [0, NumRows).
func (f *Frame) WithReordered(name string, perm []int) (*Frame, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("frame: no column %q", name)
	}
	if len(perm) != f.NumRows() {
		return nil, fmt.Errorf("frame: permutation length %d, want %d", len(perm), f.NumRows())
	}
	cols := make([]Column, len(f.cols))
	copy(cols, f.cols)
	cols[i] = f.cols[i].reordered(perm)
	return New(cols...)
}
