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

package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/hostapi"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

type fakeCatalog struct {
	known     map[string]bool
	registers int
	unregs    int
}

func (c *fakeCatalog) RegisterContainer(symbol, path string) error {
	c.registers++
	if !c.known[path] {
		return fmt.Errorf("unknown path")
	}
	return nil
}
func (c *fakeCatalog) UnregisterContainer(symbol string) error {
	c.unregs++
	return nil
}
func (c *fakeCatalog) Resolve(path string) (string, bool) { return "", false }

type fakeAmbient struct {
	container, action, actionName string
	response                      interface{}
}

func (a *fakeAmbient) CurrentContainer() string        { return a.container }
func (a *fakeAmbient) SetContainer(s string)           { a.container = s }
func (a *fakeAmbient) CurrentAction() string           { return a.action }
func (a *fakeAmbient) SetAction(s string)              { a.action = s }
func (a *fakeAmbient) CurrentActionName() string       { return a.actionName }
func (a *fakeAmbient) SetActionName(s string)          { a.actionName = s }
func (a *fakeAmbient) CurrentResponse() interface{}    { return a.response }
func (a *fakeAmbient) SetResponse(r interface{})       { a.response = r }

type fakePipeline struct {
	fail    bool
	seenCtr string
}

func (p *fakePipeline) Execute(ctx context.Context, ambient hostapi.AmbientContext) error {
	if p.fail {
		return fmt.Errorf("pipeline failure")
	}
	if tree, ok := ambient.CurrentResponse().(*cdm.Tree); ok {
		tree.Root = cdm.NewMemStructure("root")
	}
	return nil
}

type fakeResponses struct{}

func (fakeResponses) Acquire(kind string) (interface{}, error) { return &cdm.Tree{}, nil }
func (fakeResponses) Release(interface{})                      {}

func TestLoadRestoresContextOnSuccess(t *testing.T) {
	ambient := &fakeAmbient{container: "orig-container", action: "orig-action", actionName: "orig-name"}
	catalog := &fakeCatalog{known: map[string]bool{"/data/m0.nc": true}}
	pipeline := &fakePipeline{}

	l := New(catalog, pipeline, fakeResponses{}, ambient)
	tree, err := l.Load(context.Background(), "/data/m0.nc", DataKind)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)

	assert.Equal(t, "orig-container", ambient.container)
	assert.Equal(t, "orig-action", ambient.action)
	assert.Equal(t, "orig-name", ambient.actionName)
	assert.Equal(t, 1, catalog.registers)
	assert.Equal(t, 1, catalog.unregs)
}

func TestLoadRestoresContextOnPipelineFailure(t *testing.T) {
	ambient := &fakeAmbient{container: "orig"}
	catalog := &fakeCatalog{known: map[string]bool{"/data/m0.nc": true}}
	pipeline := &fakePipeline{fail: true}

	l := New(catalog, pipeline, fakeResponses{}, ambient)
	_, err := l.Load(context.Background(), "/data/m0.nc", DataKind)
	require.Error(t, err)
	assert.Equal(t, "orig", ambient.container)
	assert.Equal(t, 1, catalog.unregs)
}

func TestLoadUnknownPathIsNotFound(t *testing.T) {
	ambient := &fakeAmbient{}
	catalog := &fakeCatalog{known: map[string]bool{}}
	pipeline := &fakePipeline{}

	l := New(catalog, pipeline, fakeResponses{}, ambient)
	_, err := l.Load(context.Background(), "/data/missing.nc", DataKind)
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrNotFound.Is(err))
}

func TestLoadMissingCollaboratorIsInternal(t *testing.T) {
	l := &Loader{}
	_, err := l.Load(context.Background(), "/x", DataKind)
	require.Error(t, err)
	assert.True(t, ncmlerrors.ErrInternal.Is(err))
}
