// Copyright 2024 The NCML Aggregation Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// In-memory reference implementation of the cdm interfaces: a small,
// fully in-process stand-in for a real backend, used by this module's
// own tests to build member trees and aggregation fixtures without a
// real dataset on disk.
package cdm

import (
	"context"
	"fmt"
)

// MemStructure is an in-memory Structure: an ordered set of child
// variables plus an attribute table.
type MemStructure struct {
	name  string
	attrs *AttributeTable
	order []string
	vars  map[string]Variable
}

// NewMemStructure returns an empty named structure.
func NewMemStructure(name string) *MemStructure {
	return &MemStructure{name: name, attrs: NewAttributeTable(), vars: make(map[string]Variable)}
}

func (s *MemStructure) Name() string             { return s.name }
func (s *MemStructure) SetName(name string)       { s.name = name }
func (s *MemStructure) Kind() Kind                { return StructureKind }
func (s *MemStructure) Attributes() *AttributeTable { return s.attrs }

func (s *MemStructure) Variables() []Variable {
	out := make([]Variable, 0, len(s.order))
	for _, n := range s.order {
		out = append(out, s.vars[n])
	}
	return out
}

func (s *MemStructure) GetVariable(name string) (Variable, bool) {
	v, ok := s.vars[name]
	return v, ok
}

func (s *MemStructure) AddVariable(v Variable) error {
	if _, exists := s.vars[v.Name()]; exists {
		return fmt.Errorf("cdm: variable %q already exists", v.Name())
	}
	s.order = append(s.order, v.Name())
	s.vars[v.Name()] = v
	return nil
}

func (s *MemStructure) RemoveVariable(name string) error {
	if _, ok := s.vars[name]; !ok {
		return fmt.Errorf("cdm: variable %q not found", name)
	}
	delete(s.vars, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ReplaceVariable swaps the variable named name for replacement in place,
// preserving position. Used when installing a virtual aggregated
// array/grid over a prototype variable of the same name .
func (s *MemStructure) ReplaceVariable(name string, replacement Variable) error {
	if _, ok := s.vars[name]; !ok {
		return fmt.Errorf("cdm: variable %q not found", name)
	}
	s.vars[name] = replacement
	return nil
}

// MemArray is an in-memory Array backed by a flat value slice in row-major
// order.
type MemArray struct {
	name      string
	kind      Kind
	attrs     *AttributeTable
	dims      []Dimension
	values    []interface{}
	readP     bool
	lastConstr Constraints
}

// NewMemArray returns an array of the given element kind and shape, with
// values in row-major order (len(values) must equal the product of dims'
// sizes).
func NewMemArray(name string, kind Kind, dims []Dimension, values []interface{}) *MemArray {
	return &MemArray{name: name, kind: kind, attrs: NewAttributeTable(), dims: dims, values: values}
}

func (a *MemArray) Name() string               { return a.name }
func (a *MemArray) SetName(name string)         { a.name = name }
func (a *MemArray) Kind() Kind                  { return a.kind }
func (a *MemArray) Attributes() *AttributeTable { return a.attrs }
func (a *MemArray) Dimensions() []Dimension     { return a.dims }
func (a *MemArray) ReadP() bool                 { return a.readP }
func (a *MemArray) SetReadP(v bool)             { a.readP = v }

// SetDimensions replaces the array's shape, used when a `values` or
// aggregation step resizes a freshly-created variable before populating it.
func (a *MemArray) SetDimensions(dims []Dimension) { a.dims = dims }

// SetValues replaces the flat, row-major backing slice directly, used by
// the NcML `values` element and by aggregation variable construction.
func (a *MemArray) SetValues(values []interface{}) {
	a.values = values
	a.readP = false
}

// TotalLen returns the product of the array's declared dimension sizes
// (its unconstrained length), or 1 for a scalar.
func (a *MemArray) TotalLen() int {
	n := 1
	for _, d := range a.dims {
		n *= d.Size
	}
	return n
}

// Read applies constraint to the flat backing slice. With no dims (scalar)
// it returns the single value. Idempotent under an unchanged constraint.
func (a *MemArray) Read(_ context.Context, constraint Constraints) (*Buffer, error) {
	if a.readP && constraintsEqual(a.lastConstr, constraint) {
		return &Buffer{Kind: a.kind, Values: a.sliceFor(constraint)}, nil
	}
	vals := a.sliceFor(constraint)
	a.lastConstr = constraint
	a.readP = true
	return &Buffer{Kind: a.kind, Values: vals}, nil
}

func (a *MemArray) sliceFor(constraint Constraints) []interface{} {
	if len(a.dims) == 0 {
		return append([]interface{}{}, a.values...)
	}
	strides := make([]int, len(a.dims))
	stride := 1
	for i := len(a.dims) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= a.dims[i].Size
	}
	var out []interface{}
	var rec func(depth int, base int)
	rec = func(depth int, base int) {
		if depth == len(a.dims) {
			out = append(out, a.values[base])
			return
		}
		c := constraint[depth]
		for _, idx := range c.Indices() {
			rec(depth+1, base+idx*strides[depth])
		}
	}
	rec(0, 0)
	return out
}

func constraintsEqual(a, b Constraints) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MemGrid is an in-memory Grid: a data array plus ordered map arrays.
type MemGrid struct {
	name  string
	attrs *AttributeTable
	data  Array
	maps  []Array
}

// NewMemGrid returns a grid over data with the given coordinate maps
// (outer-to-inner order).
func NewMemGrid(name string, data Array, maps []Array) *MemGrid {
	return &MemGrid{name: name, attrs: NewAttributeTable(), data: data, maps: maps}
}

func (g *MemGrid) Name() string               { return g.name }
func (g *MemGrid) SetName(name string)         { g.name = name }
func (g *MemGrid) Kind() Kind                  { return GridKind }
func (g *MemGrid) Attributes() *AttributeTable { return g.attrs }
func (g *MemGrid) DataArray() Array            { return g.data }
func (g *MemGrid) Maps() []Array               { return g.maps }
func (g *MemGrid) SetMaps(maps []Array)        { g.maps = maps }
