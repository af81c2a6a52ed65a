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

// Package member implements the member-dataset handle: a lazy holder
// for a member dataset's typed tree, plus a per-member dimension cache.
// Handles are ref-counted because they are shared by every virtual
// array and grid built over the same aggregation.
package member

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/loader"
	"github.com/ncmlagg/aggserver/ncmlerrors"
	"github.com/ncmlagg/aggserver/pool"
)

// Handle is a member-dataset handle. It is built either from a location
// and a loader (variant 1, lazy-loads on demand) or from an
// already-materialised tree (variant 2, for virtual/nested aggregations).
type Handle struct {
	*pool.RefCounted

	location string
	loader   *loader.Loader
	kind     loader.Kind

	mu   sync.Mutex
	tree *cdm.Tree

	dimMu sync.RWMutex
	dims  map[string]int
}

// NewFromLocation returns a handle that lazily loads location via l when
// its tree is first needed .
func NewFromLocation(location string, l *loader.Loader, kind loader.Kind) *Handle {
	h := &Handle{location: location, loader: l, kind: kind, dims: make(map[string]int)}
	h.RefCounted = pool.NewRefCounted(func() { h.ClearDataTree() })
	return h
}

// NewFromTree returns a handle wrapping an already-materialised tree,
// used for virtual/nested aggregations . Its dimension cache is
// filled from tree at construction.
func NewFromTree(location string, tree *cdm.Tree) *Handle {
	h := &Handle{location: location, tree: tree, dims: make(map[string]int)}
	h.RefCounted = pool.NewRefCounted(func() { h.ClearDataTree() })
	if tree != nil {
		h.fillDimensionCacheLocked()
	}
	return h
}

// GetLocation returns the member's resource path or location string.
func (h *Handle) GetLocation() string {
	return h.location
}

// GetDataTree returns the member's typed tree, loading it on first access
// if this handle was created from a location. After a successful first
// load the dimension cache reflects every dimension appearing on any
// array/grid in the tree .
func (h *Handle) GetDataTree(ctx context.Context) (*cdm.Tree, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.tree != nil {
		return h.tree, nil
	}
	if h.loader == nil {
		return nil, ncmlerrors.ErrInternal.New("member handle has neither a tree nor a loader")
	}
	tree, err := h.loader.Load(ctx, h.location, h.kind)
	if err != nil {
		return nil, ncmlerrors.WithLocation(err, h.location)
	}
	h.tree = tree
	h.fillDimensionCacheLocked()
	return h.tree, nil
}

// ClearDataTree drops the loaded tree to bound memory , if this
// handle was built from a location (a wrapped in-memory tree cannot be
// reloaded, so it is never cleared).
func (h *Handle) ClearDataTree() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loader != nil {
		h.tree = nil
	}
}

// Destroy forcibly drops the loaded tree, ignoring the strong count. It
// satisfies pool.Refcounted so a pool.Pool can track member handles and
// force them closed on a parse failure, regardless of how many virtual
// arrays still hold a reference.
func (h *Handle) Destroy() {
	h.ClearDataTree()
}

// IsDimensionCached reports whether name is present in the per-member
// dimension cache.
func (h *Handle) IsDimensionCached(name string) bool {
	h.dimMu.RLock()
	defer h.dimMu.RUnlock()
	_, ok := h.dims[name]
	return ok
}

// GetCachedDimensionSize returns the cached size for name, or
// ErrDimensionNotFound if absent .
func (h *Handle) GetCachedDimensionSize(name string) (int, error) {
	h.dimMu.RLock()
	defer h.dimMu.RUnlock()
	size, ok := h.dims[name]
	if !ok {
		return 0, ncmlerrors.ErrDimensionNotFound.New(name)
	}
	return size, nil
}

// SetDimensionCacheFor records size for name. If uniqueOnly is true and
// name is already cached with a different size, an error is returned
// instead of overwriting it.
func (h *Handle) SetDimensionCacheFor(name string, size int, uniqueOnly bool) error {
	h.dimMu.Lock()
	defer h.dimMu.Unlock()
	if uniqueOnly {
		if existing, ok := h.dims[name]; ok && existing != size {
			return ncmlerrors.ErrSyntaxUser.New(fmt.Sprintf("dimension %q already cached with size %d, got %d", name, existing, size))
		}
	}
	h.dims[name] = size
	return nil
}

// FillDimensionCacheByUsingDataTree walks every variable in the loaded
// tree recursively and, for each array, inserts every dimension it uses
// into the cache .
func (h *Handle) FillDimensionCacheByUsingDataTree() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tree == nil {
		return ncmlerrors.ErrInternal.New("cannot fill dimension cache: tree not loaded")
	}
	h.fillDimensionCacheLocked()
	return nil
}

func (h *Handle) fillDimensionCacheLocked() {
	h.dimMu.Lock()
	defer h.dimMu.Unlock()
	walkVariables(h.tree.Root, func(v cdm.Variable) {
		switch t := v.(type) {
		case cdm.Array:
			for _, d := range t.Dimensions() {
				h.dims[d.Name] = d.Size
			}
		case cdm.Grid:
			for _, d := range t.DataArray().Dimensions() {
				h.dims[d.Name] = d.Size
			}
		}
	})
}

func walkVariables(s cdm.Structure, visit func(cdm.Variable)) {
	if s == nil {
		return
	}
	for _, v := range s.Variables() {
		visit(v)
		if child, ok := v.(cdm.Structure); ok {
			walkVariables(child, visit)
		}
	}
}

// SaveDimensionCache writes the current dimension cache to w, one
// dimension per line as "name<SPACE>size\n" .
func (h *Handle) SaveDimensionCache(w io.Writer) error {
	h.dimMu.RLock()
	defer h.dimMu.RUnlock()
	bw := bufio.NewWriter(w)
	for name, size := range h.dims {
		if _, err := fmt.Fprintf(bw, "%s %d\n", name, size); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadDimensionCache replaces the in-memory dimension cache with the
// contents read from r, in the same line format as SaveDimensionCache.
func (h *Handle) LoadDimensionCache(r io.Reader) error {
	dims := make(map[string]int)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return ncmlerrors.ErrCache.New("malformed dimension cache line: " + line)
		}
		size, err := strconv.Atoi(fields[1])
		if err != nil {
			return ncmlerrors.ErrCache.New("malformed dimension cache size: " + line)
		}
		dims[fields[0]] = size
	}
	if err := sc.Err(); err != nil {
		return err
	}
	h.dimMu.Lock()
	h.dims = dims
	h.dimMu.Unlock()
	return nil
}

// ParseLocationTemplate splits a scan-resolved location of the form
// "name#value" into its parts: used when a catalog entry carries a
// templated coordinate value alongside its path.
func ParseLocationTemplate(location string) (name, value string, ok bool) {
	idx := strings.IndexByte(location, '#')
	if idx < 0 {
		return location, "", false
	}
	return location[:idx], location[idx+1:], true
}
