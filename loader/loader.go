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

// Package loader implements the dataset loader : on demand,
// produce a fully-populated typed tree for a path by temporarily
// hijacking the ambient request context, always restoring it on exit.
package loader

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/opentracing/opentracing-go"
	pkgerrors "github.com/pkg/errors"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/hostapi"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// Kind selects what the loaded response should contain .
type Kind string

const (
	// DDXMetadata requests metadata only: attributes, dimensions, variable
	// shapes, no values.
	DDXMetadata Kind = "ddx-metadata"
	// DataKind requests a fully-populated tree, values included.
	DataKind Kind = "data"
)

// Loader produces typed trees for dataset paths by borrowing the host's
// ambient request context for the duration of one load.
type Loader struct {
	Catalog   hostapi.ContainerCatalog
	Pipeline  hostapi.Pipeline
	Responses hostapi.ResponsePool
	Ambient   hostapi.AmbientContext

	counter uint64
}

// New returns a Loader wired to the given host collaborators. Any nil
// collaborator makes every Load call fail with ErrInternal .
func New(catalog hostapi.ContainerCatalog, pipeline hostapi.Pipeline, responses hostapi.ResponsePool, ambient hostapi.AmbientContext) *Loader {
	return &Loader{Catalog: catalog, Pipeline: pipeline, Responses: responses, Ambient: ambient}
}

// snapshot captures the ambient fields the loader is about to overwrite,
//  "Snapshot".
type snapshot struct {
	container  string
	action     string
	actionName string
	response   interface{}
}

func (l *Loader) takeSnapshot() snapshot {
	return snapshot{
		container:  l.Ambient.CurrentContainer(),
		action:     l.Ambient.CurrentAction(),
		actionName: l.Ambient.CurrentActionName(),
		response:   l.Ambient.CurrentResponse(),
	}
}

func (l *Loader) restore(s snapshot) {
	l.Ambient.SetContainer(s.container)
	l.Ambient.SetAction(s.action)
	l.Ambient.SetActionName(s.actionName)
	l.Ambient.SetResponse(s.response)
}

// Load produces a fully-populated typed tree for path. It is equivalent to
// LoadInto with a response object acquired from the host's response pool.
func (l *Loader) Load(ctx context.Context, path string, kind Kind) (*cdm.Tree, error) {
	if err := l.checkWired(); err != nil {
		return nil, err
	}
	resp, err := l.Responses.Acquire(string(kind))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loader: acquiring response object")
	}
	defer l.Responses.Release(resp)

	if err := l.LoadInto(ctx, path, kind, resp); err != nil {
		return nil, err
	}
	tree, ok := resp.(*cdm.Tree)
	if !ok {
		return nil, ncmlerrors.ErrInternal.New("response object is not a *cdm.Tree")
	}
	return tree, nil
}

// LoadInto populates the caller-supplied response object by running the
// host's request pipeline against path, via the Snapshot/Install/Execute/
// Restore sequence. Restoration happens on every exit path, including
// when Execute returns an error (scoped acquisition with guaranteed
// release).
func (l *Loader) LoadInto(ctx context.Context, path string, kind Kind, response interface{}) error {
	if err := l.checkWired(); err != nil {
		return err
	}

	span, ctx := opentracing.StartSpanFromContext(ctx, "loader.Load")
	defer span.Finish()
	span.SetTag("path", path)
	span.SetTag("kind", string(kind))

	symbol := l.nextSymbol(path)

	if err := l.Catalog.RegisterContainer(symbol, path); err != nil {
		return ncmlerrors.ErrNotFound.New(path)
	}

	snap := l.takeSnapshot()
	defer func() {
		l.restore(snap)
		_ = l.Catalog.UnregisterContainer(symbol)
	}()

	l.Ambient.SetContainer(symbol)
	l.Ambient.SetAction(string(kind))
	l.Ambient.SetActionName(path)
	l.Ambient.SetResponse(response)

	if err := l.Pipeline.Execute(ctx, l.Ambient); err != nil {
		return pkgerrors.Wrapf(err, "loader: loading %q", path)
	}
	return nil
}

func (l *Loader) checkWired() error {
	if l.Catalog == nil || l.Pipeline == nil || l.Responses == nil || l.Ambient == nil {
		return ncmlerrors.ErrInternal.New("loader is missing a required host collaborator")
	}
	return nil
}

func (l *Loader) nextSymbol(path string) string {
	n := atomic.AddUint64(&l.counter, 1)
	return fmt.Sprintf("__Loader_%d__%s", n, path)
}
