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

package dimcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/config"
	"github.com/ncmlagg/aggserver/member"
)

func newTestStore(t *testing.T, dataRoot string) *Store {
	t.Helper()
	s, err := New(config.CacheConfig{
		CacheDirectory: t.TempDir(),
		CachePrefix:    "NC_",
		CacheSizeMB:    1,
		DataRootDir:    dataRoot,
	})
	require.NoError(t, err)
	return s
}

func sampleTree() *cdm.Tree {
	root := cdm.NewMemStructure("root")
	v := cdm.NewMemArray("temp", cdm.Float64,
		[]cdm.Dimension{{Name: "time", Size: 4}}, make([]interface{}, 4))
	_ = root.AddVariable(v)
	return &cdm.Tree{Root: root}
}

func TestMangleReplacesSpacesAndSlashes(t *testing.T) {
	assert.Equal(t, "a#b#c", mangle("a b/c"))
}

func TestLoadColdEntryWritesBackAndIsReloadable(t *testing.T) {
	dataRoot := t.TempDir()
	memberFile := filepath.Join(dataRoot, "m0.nc")
	require.NoError(t, os.WriteFile(memberFile, []byte("x"), 0o644))

	s := newTestStore(t, dataRoot)
	h := member.NewFromTree("m0.nc", sampleTree())

	require.NoError(t, s.Load(context.Background(), h, "m0.nc"))
	size, err := h.GetCachedDimensionSize("time")
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	entry := s.entryPath("m0.nc")
	info, err := os.Stat(entry)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	h2 := member.NewFromTree("m0.nc", sampleTree())
	h2.ClearDataTree()
	require.NoError(t, s.Load(context.Background(), h2, "m0.nc"))
	size, err = h2.GetCachedDimensionSize("time")
	require.NoError(t, err)
	assert.Equal(t, 4, size)
}

func TestValidFallsBackTrueWhenMemberIsNotRegularFile(t *testing.T) {
	s := newTestStore(t, "")
	entry := filepath.Join(s.cfg.CacheDirectory, "entry")
	require.NoError(t, os.WriteFile(entry, []byte("time 3\n"), 0o644))

	ok, err := s.valid(entry, filepath.Join(s.cfg.CacheDirectory, "does-not-exist.nc"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidRejectsEmptyEntry(t *testing.T) {
	s := newTestStore(t, "")
	entry := filepath.Join(s.cfg.CacheDirectory, "entry")
	require.NoError(t, os.WriteFile(entry, nil, 0o644))

	ok, err := s.valid(entry, filepath.Join(s.cfg.CacheDirectory, "missing.nc"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidRejectsStaleEntry(t *testing.T) {
	dataRoot := t.TempDir()
	memberFile := filepath.Join(dataRoot, "m0.nc")
	require.NoError(t, os.WriteFile(memberFile, []byte("x"), 0o644))

	s := newTestStore(t, dataRoot)
	entry := s.entryPath("m0.nc")
	require.NoError(t, os.WriteFile(entry, []byte("time 4\n"), 0o644))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(entry, old, old))

	ok, err := s.valid(entry, memberFile)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurgeOlderThanRemovesStaleEntries(t *testing.T) {
	s := newTestStore(t, "")
	entry := filepath.Join(s.cfg.CacheDirectory, s.cfg.CachePrefix+"stale")
	require.NoError(t, os.WriteFile(entry, []byte("time 1\n"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(entry, old, old))

	require.NoError(t, s.PurgeOlderThan(time.Hour))
	_, err := os.Stat(entry)
	assert.True(t, os.IsNotExist(err))
}
