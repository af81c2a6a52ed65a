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

// Package cdm defines the surface of the underlying typed-data library:
// Attribute, Variable, Array, Grid, Structure, Sequence, and typed
// scalar kinds. This library is an external collaborator the rest of
// this module only consumes; this package is the interface boundary
// plus a minimal in-memory reference implementation, an in-memory
// stand-in for a pluggable backend, used by this module's own tests.
package cdm

// Kind identifies a variable's element type or composite shape.
type Kind int

const (
	Unknown Kind = iota
	Byte
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
	String
	URL
	ArrayKind
	StructureKind
	SequenceKind
	GridKind
)

func (k Kind) String() string {
	switch k {
	case Byte:
		return "Byte"
	case Int16:
		return "Int16"
	case UInt16:
		return "UInt16"
	case Int32:
		return "Int32"
	case UInt32:
		return "UInt32"
	case Float32:
		return "Float32"
	case Float64:
		return "Float64"
	case String:
		return "String"
	case URL:
		return "URL"
	case ArrayKind:
		return "Array"
	case StructureKind:
		return "Structure"
	case SequenceKind:
		return "Sequence"
	case GridKind:
		return "Grid"
	default:
		return "Unknown"
	}
}

// IsSimple reports whether k is an atomic scalar kind, as opposed to a
// composite or container kind.
func (k Kind) IsSimple() bool {
	switch k {
	case Byte, Int16, UInt16, Int32, UInt32, Float32, Float64, String, URL:
		return true
	default:
		return false
	}
}

// IsComposite reports whether k is a Structure or Sequence.
func (k Kind) IsComposite() bool {
	return k == StructureKind || k == SequenceKind
}
