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

// Package config holds the host-supplied configuration keys for the
// dimension cache and the scan resolver's catalog boundary, validated
// up front the way a constructed Engine validates its own Config.
package config

import (
	"fmt"
	"path/filepath"
)

// CacheConfig configures the dimension cache store.
type CacheConfig struct {
	// CacheDirectory is the root directory for cache files. Required.
	CacheDirectory string
	// CachePrefix is the lowercased filename prefix for generated cache
	// entries. Required.
	CachePrefix string
	// CacheSizeMB is the maximum total bytes (in MiB) before eviction
	// begins. Required.
	CacheSizeMB int64
	// DataRootDir is the root directory used to resolve member paths for
	// mtime comparison.
	DataRootDir string
}

// Validate checks the required keys are set and returns a normalized copy
// (CachePrefix lowercased,  "mangle").
func (c CacheConfig) Validate() (CacheConfig, error) {
	if c.CacheDirectory == "" {
		return c, fmt.Errorf("config: CacheDirectory is required")
	}
	if c.CachePrefix == "" {
		return c, fmt.Errorf("config: CachePrefix is required")
	}
	if c.CacheSizeMB <= 0 {
		return c, fmt.Errorf("config: CacheSizeMB must be > 0")
	}
	c.CachePrefix = toLower(c.CachePrefix)
	c.CacheDirectory = filepath.Clean(c.CacheDirectory)
	return c, nil
}

// MaxBytes converts CacheSizeMB to a byte ceiling.
func (c CacheConfig) MaxBytes() int64 {
	return c.CacheSizeMB * 1024 * 1024
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// CatalogConfig names the host catalog root used to resolve relative scan
// locations and to reject path traversal .
type CatalogConfig struct {
	// CatalogRoot is the root directory the host's container catalog
	// resolves dataset paths against.
	CatalogRoot string
	// AllowSymlinksOutsideRoot permits scan results to follow symlinks that
	// escape CatalogRoot. Default false .
	AllowSymlinksOutsideRoot bool
	// AllowParentTraversal permits scan locations containing "../" segments.
	// Default false.
	AllowParentTraversal bool
}
