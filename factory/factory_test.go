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

package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
)

func TestClassifySpecialCases(t *testing.T) {
	cases := map[string]cdm.Kind{
		"char":      cdm.Byte,
		"byte":      cdm.Byte,
		"short":     cdm.Int16,
		"int":       cdm.Int32,
		"long":      cdm.Int32,
		"float":     cdm.Float32,
		"double":    cdm.Float64,
		"Structure": cdm.StructureKind,
		"structure": cdm.StructureKind,
		"String":    cdm.String,
	}
	for name, want := range cases {
		got, err := Classify(name)
		require.NoError(t, err)
		assert.Equalf(t, want, got, "classify(%s)", name)
	}
}

func TestClassifyEmptyIsError(t *testing.T) {
	_, err := Classify("")
	require.Error(t, err)
}

func TestIsSimple(t *testing.T) {
	ok, err := IsSimple("double")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsSimple("Structure")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMakeVariable(t *testing.T) {
	v, err := MakeVariable(cdm.Float64, "temp")
	require.NoError(t, err)
	assert.Equal(t, "temp", v.Name())
	assert.Equal(t, cdm.Float64, v.Kind())

	s, err := MakeVariable(cdm.StructureKind, "rec")
	require.NoError(t, err)
	_, ok := s.(cdm.Structure)
	assert.True(t, ok)
}
