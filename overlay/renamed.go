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

package overlay

import "github.com/ncmlagg/aggserver/cdm"

// RenamedArray decorates an existing cdm.Array so that reads keep
// dispatching to the original backing array while the tree reports a new
// name — the counterpart of the original NcML implementation's
// RenamedArrayWrapper, used whenever `<variable orgName=... name=.../>`
// renames an array in place rather than replacing it outright.
type RenamedArray struct {
	cdm.Array
	name string
}

// NewRenamedArray wraps original so Name reports name while every other
// operation (Read, Dimensions, Attributes) still delegates to original.
func NewRenamedArray(original cdm.Array, name string) *RenamedArray {
	return &RenamedArray{Array: original, name: name}
}

func (r *RenamedArray) Name() string      { return r.name }
func (r *RenamedArray) SetName(n string)  { r.name = n }
