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

// Package factory is the typed-data factory adapter : classify
// external type names into cdm.Kind, and construct fresh cdm.Variable
// values by kind.
package factory

import (
	"strings"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// Classify maps a canonical type name (as it appears in NCML `type`
// attributes) to a cdm.Kind. Empty name is an error except where the
// caller contextually treats it as "same as existing" .
func Classify(name string) (cdm.Kind, error) {
	switch name {
	case "":
		return cdm.Unknown, ncmlerrors.ErrParse.New("empty type name")
	case "Byte", "byte":
		return cdm.Byte, nil
	case "Int16", "short":
		return cdm.Int16, nil
	case "UInt16":
		return cdm.UInt16, nil
	case "Int32", "int", "long":
		return cdm.Int32, nil
	case "UInt32":
		return cdm.UInt32, nil
	case "Float32", "float":
		return cdm.Float32, nil
	case "Float64", "double":
		return cdm.Float64, nil
	case "String":
		return cdm.String, nil
	case "URL":
		return cdm.URL, nil
	case "Array":
		return cdm.ArrayKind, nil
	case "Structure", "structure":
		return cdm.StructureKind, nil
	case "Sequence":
		return cdm.SequenceKind, nil
	case "Grid":
		return cdm.GridKind, nil
	case "char":
		return cdm.Byte, nil
	default:
		return cdm.Unknown, nil
	}
}

// IsSimple reports whether name classifies to an atomic scalar kind.
func IsSimple(name string) (bool, error) {
	k, err := Classify(name)
	if err != nil {
		return false, err
	}
	return k.IsSimple(), nil
}

// MapExternalTypeName applies the special-case table verbatim:
// "char"->Byte, "byte"->Byte, "short"->Int16, "int"/"long"->Int32,
// "float"->Float32, "double"->Float64, "Structure"/"structure"->
// Structure; library-native names pass through unchanged classification.
func MapExternalTypeName(name string) (cdm.Kind, error) {
	return Classify(name)
}

// MakeVariable constructs a fresh, empty cdm.Variable of the requested
// kind and name. Structure and Sequence yield a cdm.Structure; simple
// kinds yield a scalar cdm.Array with no dimensions; any other kind
// (Array, Grid, Unknown) is an ErrParse.
func MakeVariable(kind cdm.Kind, name string) (cdm.Variable, error) {
	switch {
	case kind == cdm.StructureKind || kind == cdm.SequenceKind:
		return cdm.NewMemStructure(name), nil
	case kind.IsSimple():
		return cdm.NewMemArray(name, kind, nil, nil), nil
	default:
		return nil, ncmlerrors.ErrParse.New("cannot create variable of kind " + kind.String())
	}
}

// NormalizeTypeName folds any casing of "structure" to "Structure", the one
// mixed-case library-native name the original C++ factory
// (MyBaseTypeFactory) tolerated; every other name is returned unchanged.
func NormalizeTypeName(name string) string {
	switch strings.ToLower(name) {
	case "structure":
		return "Structure"
	default:
		return name
	}
}
