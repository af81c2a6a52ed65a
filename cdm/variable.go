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

package cdm

import "context"

// Variable is the common surface of every named, typed node in the tree:
// atomic scalars, arrays, grids, and composites.
type Variable interface {
	Name() string
	SetName(string)
	Kind() Kind
	Attributes() *AttributeTable
}

// Buffer is the output of a Read: a flat, typed value stream plus the
// constraint it was populated under .
type Buffer struct {
	Kind   Kind
	Values []interface{}
}

// Len returns the number of values currently in the buffer.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Values)
}

// Append adds v to the buffer's value stream, used by virtual arrays
// streaming member values into their output buffer .
func (b *Buffer) Append(v ...interface{}) {
	b.Values = append(b.Values, v...)
}

// Array is a homogeneous, possibly multi-dimensional variable whose values
// are read on demand under a hyperslab constraint.
type Array interface {
	Variable
	Dimensions() []Dimension
	// ReadP reports whether the output buffer has been populated under the
	// current constraint .
	ReadP() bool
	// SetReadP is accepted but, , buffer freshness is actually
	// managed by Read; callers besides Read should not rely on it alone.
	SetReadP(bool)
	// Read populates and returns the output buffer for the given
	// constraint. Read is idempotent per unchanged constraint .
	Read(ctx context.Context, constraint Constraints) (*Buffer, error)
}

// Grid is a gridded variable: a data Array plus an ordered list of
// coordinate map arrays (outer-to-inner).
type Grid interface {
	Variable
	DataArray() Array
	Maps() []Array
	SetMaps([]Array)
}

// Structure is a composite container of named child variables.
type Structure interface {
	Variable
	Variables() []Variable
	GetVariable(name string) (Variable, bool)
	AddVariable(v Variable) error
	RemoveVariable(name string) error
}

// Sequence is a Structure whose instances form a sequence of rows rather
// than a fixed-rank array; the core only needs to classify and carry it
// .
type Sequence interface {
	Structure
}

// Tree is a fully-populated typed tree for one dataset path: a root
// Structure (global attributes + top-level variables) plus its
// dimension table .
type Tree struct {
	Root       Structure
	Dimensions map[string]Dimension
}

// GlobalAttributes returns the root structure's attribute table.
func (t *Tree) GlobalAttributes() *AttributeTable {
	return t.Root.Attributes()
}
