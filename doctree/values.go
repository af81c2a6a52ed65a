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

package doctree

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// parseKindValue parses tok to the runtime representation `values`
// elements store for kind: numeric kinds to float64, everything else
// (String, URL) verbatim as a string. char variables are a special case
// of Byte: each token is taken as a single literal character, not parsed
// as a number.
func parseKindValue(kind cdm.Kind, isChar bool, tok string) (interface{}, error) {
	if kind == cdm.Byte && isChar {
		r := []rune(tok)
		if len(r) == 0 {
			return "", nil
		}
		return string(r[0]), nil
	}
	switch kind {
	case cdm.Byte, cdm.Int16, cdm.UInt16, cdm.Int32, cdm.UInt32, cdm.Float32, cdm.Float64:
		f, err := cast.ToFloat64E(tok)
		if err != nil {
			return nil, ncmlerrors.ErrParse.New("values: " + err.Error())
		}
		return f, nil
	default:
		return tok, nil
	}
}

// addKindValue implements the auto-generated mode's running accumulator.
// Only numeric kinds support auto-generation; this is only ever called
// after parseKindValue already validated both operands against the same
// kind. char variables don't auto-generate; a is returned unchanged.
func addKindValue(kind cdm.Kind, isChar bool, a, b interface{}) interface{} {
	if kind == cdm.Byte && isChar {
		return a
	}
	switch kind {
	case cdm.Byte, cdm.Int16, cdm.UInt16, cdm.Int32, cdm.UInt32, cdm.Float32, cdm.Float64:
		return a.(float64) + b.(float64)
	default:
		return a
	}
}

// pendingValues accumulates a `values` element's state between
// OnStartElement and OnEndElement: the character-data mode needs the
// element's text content, which only arrives via later OnCharacters
// calls.
type pendingValues struct {
	arr       *cdm.MemArray
	kind      cdm.Kind
	isChar    bool
	start     string
	increment string
	separator string
	text      strings.Builder
}
