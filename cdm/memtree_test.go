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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStructureAddGetRemove(t *testing.T) {
	s := NewMemStructure("root")
	v := NewMemArray("temp", Float32, nil, []interface{}{float32(10.0)})
	require.NoError(t, s.AddVariable(v))

	got, ok := s.GetVariable("temp")
	require.True(t, ok)
	assert.Equal(t, "temp", got.Name())

	require.NoError(t, s.RemoveVariable("temp"))
	_, ok = s.GetVariable("temp")
	assert.False(t, ok)
}

func TestMemStructureReplaceVariable(t *testing.T) {
	s := NewMemStructure("root")
	orig := NewMemArray("temp", Float32, nil, []interface{}{float32(1)})
	require.NoError(t, s.AddVariable(orig))

	replacement := NewMemArray("temp", Float32, []Dimension{{Name: "t", Size: 3}}, []interface{}{float32(1), float32(2), float32(3)})
	require.NoError(t, s.ReplaceVariable("temp", replacement))

	got, _ := s.GetVariable("temp")
	assert.Len(t, got.(Array).Dimensions(), 1)
}

func TestMemArrayReadWithConstraint(t *testing.T) {
	dims := []Dimension{{Name: "x", Size: 5}}
	arr := NewMemArray("v", Int32, dims, []interface{}{0, 1, 2, 3, 4})

	buf, err := arr.Read(context.Background(), Constraints{{Start: 1, Stride: 2, Stop: 3}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, 3}, buf.Values)
	assert.True(t, arr.ReadP())
}

func TestMemArrayReadIsIdempotent(t *testing.T) {
	dims := []Dimension{{Name: "x", Size: 3}}
	arr := NewMemArray("v", Int32, dims, []interface{}{10, 20, 30})
	c := Constraints{FullConstraint(3)}

	b1, err := arr.Read(context.Background(), c)
	require.NoError(t, err)
	b2, err := arr.Read(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, b1.Values, b2.Values)
}

func TestMemArray2DRead(t *testing.T) {
	dims := []Dimension{{Name: "y", Size: 2}, {Name: "x", Size: 3}}
	// row-major: [[0,1,2],[3,4,5]]
	arr := NewMemArray("v", Int32, dims, []interface{}{0, 1, 2, 3, 4, 5})
	buf, err := arr.Read(context.Background(), Constraints{FullConstraint(2), FullConstraint(3)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0, 1, 2, 3, 4, 5}, buf.Values)

	buf2, err := arr.Read(context.Background(), Constraints{{Start: 1, Stride: 1, Stop: 1}, FullConstraint(3)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{3, 4, 5}, buf2.Values)
}
