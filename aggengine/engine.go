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

// Package aggengine is the top-level façade: given an NcML document and
// the host collaborators it needs to resolve member datasets, it wires
// the XML interpreter (ncmlxml) through the document tree builder
// (doctree) and returns the finished typed tree. It is the single
// constructed object an embedder holds onto, built once from a Config
// and reused across requests.
package aggengine

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/config"
	"github.com/ncmlagg/aggserver/dimcache"
	"github.com/ncmlagg/aggserver/doctree"
	"github.com/ncmlagg/aggserver/hostapi"
	"github.com/ncmlagg/aggserver/loader"
	"github.com/ncmlagg/aggserver/ncmlerrors"
	"github.com/ncmlagg/aggserver/ncmlxml"
)

// Config configures a new Engine. Catalog, Pipeline, Responses and
// Ambient are the host collaborators the dataset loader hijacks for the
// duration of each member load ; Cache is optional — when its
// CacheDirectory is empty no on-disk dimension cache is built, and
// joinExisting aggregations fall back to loading each member fully to
// learn its dimension sizes.
type Config struct {
	Catalog   hostapi.ContainerCatalog
	Pipeline  hostapi.Pipeline
	Responses hostapi.ResponsePool
	Ambient   hostapi.AmbientContext

	Cache       config.CacheConfig
	ScanCatalog config.CatalogConfig
}

// Engine is the constructed façade: a loader bound to the host's
// collaborators, and (optionally) a dimension cache store. Safe for
// concurrent use by multiple Aggregate calls, the way a *sql.Engine is
// safe for concurrent queries — each call starts its own parser and
// builder and shares no mutable state across calls beyond the cache
// store and loader, both of which are internally synchronized.
type Engine struct {
	loaderSvc *loader.Loader
	cache     *dimcache.Store
	catalog   config.CatalogConfig
}

// New validates cfg and constructs an Engine. The engine keeps no open
// files between calls, so Engine.Close has nothing to release.
func New(cfg Config) (*Engine, error) {
	if cfg.Catalog == nil || cfg.Pipeline == nil || cfg.Responses == nil || cfg.Ambient == nil {
		return nil, ncmlerrors.ErrInternal.New("aggengine: missing a required host collaborator")
	}

	var cache *dimcache.Store
	if cfg.Cache.CacheDirectory != "" {
		var err error
		cache, err = dimcache.New(cfg.Cache)
		if err != nil {
			return nil, errors.Wrap(err, "aggengine: constructing dimension cache")
		}
	}

	return &Engine{
		loaderSvc: loader.New(cfg.Catalog, cfg.Pipeline, cfg.Responses, cfg.Ambient),
		cache:     cache,
		catalog:   cfg.ScanCatalog,
	}, nil
}

// Aggregate parses the NcML document read from r (whose path is named by
// sourceFile for diagnostics) and returns its fully aggregated typed
// tree.
func (e *Engine) Aggregate(ctx context.Context, sourceFile string, r io.Reader) (*cdm.Tree, error) {
	p := ncmlxml.New(sourceFile)
	b := doctree.NewBuilder(ctx, p, e.loaderSvc, e.cache, e.catalog)
	if err := p.Parse(r, b); err != nil {
		b.Pool().Teardown()
		return nil, err
	}
	result := b.Result()
	if result == nil {
		return nil, ncmlerrors.ErrInternal.New("aggengine: parse produced no document")
	}
	return result, nil
}

// Close returns nil. The dimension cache store opens and closes its files
// within each call, so there are no held resources to release.
func (e *Engine) Close() error {
	return nil
}
