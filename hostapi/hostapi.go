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

// Package hostapi declares the interfaces the core requires of its host:
// the request context, the container catalog/storage registry, and the
// response object pool. These describe the seam a host must implement
// without the core depending on any particular host's concrete types.
package hostapi

import "context"

// AmbientContext is the mutable per-request state the dataset loader
// temporarily hijacks and must restore : which container is bound, which action and action-name are
// set, and which response object is attached.
type AmbientContext interface {
	CurrentContainer() string
	SetContainer(string)
	CurrentAction() string
	SetAction(string)
	CurrentActionName() string
	SetActionName(string)
	CurrentResponse() interface{}
	SetResponse(interface{})
}

// ContainerCatalog is the host's storage registry: the set of symbols the
// request pipeline can resolve to an on-disk (or otherwise addressable)
// dataset path.
type ContainerCatalog interface {
	// RegisterContainer binds symbol to path, making it resolvable by the
	// pipeline for the duration of one Load call .
	RegisterContainer(symbol, path string) error
	// UnregisterContainer removes symbol .
	UnregisterContainer(symbol string) error
	// Resolve reports whether path is already a known container path,
	// i.e. whether it is safe to Load .
	Resolve(path string) (symbol string, ok bool)
}

// Pipeline is the host's request-handler pipeline: given the currently
// installed AmbientContext, execute whatever action is bound .
type Pipeline interface {
	Execute(ctx context.Context, ambient AmbientContext) error
}

// ResponsePool vends and reclaims response objects of a given kind.
type ResponsePool interface {
	Acquire(kind string) (interface{}, error)
	Release(resp interface{})
}
