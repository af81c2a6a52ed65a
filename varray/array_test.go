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

package varray

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/member"
)

func memberWithArray(location string, values []interface{}, dims []cdm.Dimension) *member.Handle {
	root := cdm.NewMemStructure("root")
	v := cdm.NewMemArray("temp", cdm.Float64, dims, values)
	_ = root.AddVariable(v)
	return member.NewFromTree(location, &cdm.Tree{Root: root})
}

func TestJoinNewArrayStreamsEachMemberInOrder(t *testing.T) {
	m0 := memberWithArray("m0.nc", []interface{}{1.0, 2.0}, []cdm.Dimension{{Name: "x", Size: 2}})
	m1 := memberWithArray("m1.nc", []interface{}{3.0, 4.0}, []cdm.Dimension{{Name: "x", Size: 2}})

	arr := NewJoinNewArray("temp", cdm.Float64,
		[]cdm.Dimension{{Name: "time", Size: 2}, {Name: "x", Size: 2}},
		"temp", []*member.Handle{m0, m1})

	buf, err := arr.Read(context.Background(), cdm.Constraints{
		cdm.FullConstraint(2), cdm.FullConstraint(2),
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0, 4.0}, buf.Values)
}

func TestJoinNewArrayReadIsIdempotent(t *testing.T) {
	m0 := memberWithArray("m0.nc", []interface{}{1.0}, nil)
	arr := NewJoinNewArray("temp", cdm.Float64, []cdm.Dimension{{Name: "time", Size: 1}}, "temp", []*member.Handle{m0})

	c := cdm.Constraints{cdm.FullConstraint(1)}
	first, err := arr.Read(context.Background(), c)
	require.NoError(t, err)
	second, err := arr.Read(context.Background(), c)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestJoinNewArrayMissingVariableIsAggregationError(t *testing.T) {
	root := cdm.NewMemStructure("root")
	m0 := member.NewFromTree("m0.nc", &cdm.Tree{Root: root})
	arr := NewJoinNewArray("temp", cdm.Float64, []cdm.Dimension{{Name: "time", Size: 1}}, "temp", []*member.Handle{m0})

	_, err := arr.Read(context.Background(), cdm.Constraints{cdm.FullConstraint(1)})
	assert.Error(t, err)
}

type staticSizer struct {
	sizes map[string]int
}

func (s staticSizer) Load(_ context.Context, h *member.Handle, memberLocalID string) error {
	_ = h.SetDimensionCacheFor("time", s.sizes[memberLocalID], false)
	return nil
}

func TestJoinExistingArraySpansMultipleMembers(t *testing.T) {
	m0 := memberWithArray("m0.nc", []interface{}{1.0, 2.0}, []cdm.Dimension{{Name: "time", Size: 2}})
	m1 := memberWithArray("m1.nc", []interface{}{3.0, 4.0, 5.0}, []cdm.Dimension{{Name: "time", Size: 3}})

	cache := staticSizer{sizes: map[string]int{"m0.nc": 2, "m1.nc": 3}}
	arr := NewJoinExistingArray("temp", cdm.Float64, []cdm.Dimension{{Name: "time", Size: 5}},
		"temp", "time", []*member.Handle{m0, m1}, cache)

	buf, err := arr.Read(context.Background(), cdm.Constraints{cdm.FullConstraint(5)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0, 4.0, 5.0}, buf.Values)
}

func TestStreamIntoWritesAtOffset(t *testing.T) {
	arr := cdm.NewMemArray("v", cdm.Float64, []cdm.Dimension{{Name: "x", Size: 2}}, []interface{}{9.0, 8.0})
	dst := &cdm.Buffer{Kind: cdm.Float64, Values: make([]interface{}, 4)}

	n, err := StreamInto(context.Background(), dst, arr, cdm.Constraints{cdm.FullConstraint(2)}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []interface{}{nil, nil, 9.0, 8.0}, dst.Values)
}
