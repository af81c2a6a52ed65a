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

package member

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

func sampleTree() *cdm.Tree {
	root := cdm.NewMemStructure("root")
	temp := cdm.NewMemArray("temp", cdm.Float64,
		[]cdm.Dimension{{Name: "time", Size: 3}, {Name: "lat", Size: 2}},
		make([]interface{}, 6))
	_ = root.AddVariable(temp)
	return &cdm.Tree{Root: root, Dimensions: map[string]cdm.Dimension{}}
}

func TestNewFromTreeGetDataTree(t *testing.T) {
	tree := sampleTree()
	h := NewFromTree("/data/m0.nc", tree)

	got, err := h.GetDataTree(context.Background())
	require.NoError(t, err)
	assert.Same(t, tree, got)
	assert.Equal(t, "/data/m0.nc", h.GetLocation())
}

func TestGetDataTreeWithoutLoaderOrTreeIsInternal(t *testing.T) {
	h := &Handle{dims: make(map[string]int)}
	_, err := h.GetDataTree(context.Background())
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrInternal.Is(err))
}

func TestFillDimensionCacheByUsingDataTree(t *testing.T) {
	h := NewFromTree("/data/m0.nc", sampleTree())
	_, err := h.GetDataTree(context.Background())
	require.NoError(t, err)

	assert.True(t, h.IsDimensionCached("time"))
	size, err := h.GetCachedDimensionSize("time")
	require.NoError(t, err)
	assert.Equal(t, 3, size)

	size, err = h.GetCachedDimensionSize("lat")
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestGetCachedDimensionSizeMissingIsNotFound(t *testing.T) {
	h := NewFromTree("/data/m0.nc", sampleTree())
	_, err := h.GetCachedDimensionSize("lon")
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrDimensionNotFound.Is(err))
}

func TestSetDimensionCacheForUniqueConflict(t *testing.T) {
	h := NewFromTree("/data/m0.nc", sampleTree())
	require.NoError(t, h.SetDimensionCacheFor("time", 3, true))
	err := h.SetDimensionCacheFor("time", 5, true)
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrSyntaxUser.Is(err))
}

func TestSaveAndLoadDimensionCacheRoundTrip(t *testing.T) {
	h := NewFromTree("/data/m0.nc", sampleTree())
	_, err := h.GetDataTree(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, h.SaveDimensionCache(&buf))

	h2 := NewFromTree("/data/m1.nc", sampleTree())
	require.NoError(t, h2.LoadDimensionCache(&buf))

	size, err := h2.GetCachedDimensionSize("time")
	require.NoError(t, err)
	assert.Equal(t, 3, size)
}

func TestLoadDimensionCacheMalformedLine(t *testing.T) {
	h := NewFromTree("/data/m0.nc", sampleTree())
	err := h.LoadDimensionCache(bytes.NewBufferString("time notanumber\n"))
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrCache.Is(err))
}

func TestWrappedTreeIsNeverCleared(t *testing.T) {
	tree := sampleTree()
	h := NewFromTree("/data/m0.nc", tree)
	h.ClearDataTree()
	got, err := h.GetDataTree(context.Background())
	require.NoError(t, err)
	assert.Same(t, tree, got)
}

func TestParseLocationTemplate(t *testing.T) {
	name, value, ok := ParseLocationTemplate("/data/m0.nc#2024-01-01")
	assert.True(t, ok)
	assert.Equal(t, "/data/m0.nc", name)
	assert.Equal(t, "2024-01-01", value)

	name, value, ok = ParseLocationTemplate("/data/m0.nc")
	assert.False(t, ok)
	assert.Equal(t, "/data/m0.nc", name)
	assert.Equal(t, "", value)
}
