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

// Package vgrid implements the virtual aggregated grid: a grid whose
// inner coordinate maps are taken verbatim from a prototype member's
// grid, whose data array is one of the varray variants, and whose outer
// map is either the synthesised coordinate variable (joinNew) or itself
// streamed from members (joinExisting).
package vgrid

import (
	"context"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// JoinedGrid is a grid whose data array and outer map are streamed from
// members and whose inner maps are borrowed verbatim from a prototype.
type JoinedGrid struct {
	name      string
	attrs     *cdm.AttributeTable
	prototype cdm.Grid
	data      cdm.Array
	outerMap  cdm.Array
}

// NewJoinedGrid constructs a joined grid over data (one of
// varray.JoinNewArray / varray.JoinExistingArray), taking its inner
// coordinate maps from prototype and prepending outerMap.
func NewJoinedGrid(name string, prototype cdm.Grid, data cdm.Array, outerMap cdm.Array) *JoinedGrid {
	return &JoinedGrid{name: name, attrs: cdm.NewAttributeTable(), prototype: prototype, data: data, outerMap: outerMap}
}

func (g *JoinedGrid) Name() string               { return g.name }
func (g *JoinedGrid) SetName(name string)        { g.name = name }
func (g *JoinedGrid) Kind() cdm.Kind              { return cdm.GridKind }
func (g *JoinedGrid) Attributes() *cdm.AttributeTable { return g.attrs }
func (g *JoinedGrid) DataArray() cdm.Array       { return g.data }

// Maps returns the outer (joined) map followed by the prototype's own
// maps, outer-to-inner.
func (g *JoinedGrid) Maps() []cdm.Array {
	out := make([]cdm.Array, 0, len(g.prototype.Maps())+1)
	out = append(out, g.outerMap)
	out = append(out, g.prototype.Maps()...)
	return out
}

// SetMaps is accepted for interface compliance; the joined grid's maps
// are derived, not independently settable.
func (g *JoinedGrid) SetMaps([]cdm.Array) {}

// SetOuterMap installs the outer coordinate map after construction, used
// by the planner once it has synthesised (or located) the joinNew
// aggregation's coordinate variable.
func (g *JoinedGrid) SetOuterMap(outerMap cdm.Array) {
	g.outerMap = outerMap
}

// Read reads each inner map under the matching (outer-dropped)
// constraint, reads the outer map under the outer constraint, and
// delegates the data read to the data array.
func (g *JoinedGrid) Read(ctx context.Context, constraint cdm.Constraints) (*cdm.Buffer, error) {
	if len(constraint) == 0 {
		return nil, ncmlerrors.ErrInternal.New("vgrid: Read requires an explicit constraint")
	}
	outer := constraint[0]
	inner := constraint.DropOuter()

	for _, m := range g.prototype.Maps() {
		mdims := m.Dimensions()
		mc := make(cdm.Constraints, len(mdims))
		for i := range mdims {
			if i < len(inner) {
				mc[i] = inner[i]
			} else {
				mc[i] = cdm.FullConstraint(mdims[i].Size)
			}
		}
		if _, err := m.Read(ctx, mc); err != nil {
			return nil, err
		}
	}

	if _, err := g.outerMap.Read(ctx, cdm.Constraints{outer}); err != nil {
		return nil, err
	}

	return g.data.Read(ctx, constraint)
}
