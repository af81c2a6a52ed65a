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

// Package planner implements the aggregation planner : given
// an aggregation's type, its ordered member list, and its declared
// aggregation variables, populate the output (parent) dataset.
package planner

import (
	"context"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/coord"
	"github.com/ncmlagg/aggserver/member"
	"github.com/ncmlagg/aggserver/ncmlerrors"
	"github.com/ncmlagg/aggserver/varray"
	"github.com/ncmlagg/aggserver/vgrid"
)

// Type identifies an aggregation's combination strategy .
type Type string

const (
	Union                             Type = "union"
	JoinNew                           Type = "joinNew"
	JoinExisting                      Type = "joinExisting"
	ForecastModelRunCollection        Type = "forecastModelRunCollection"
	ForecastModelSingleRunCollection  Type = "forecastModelSingleRunCollection"
)

// MemberInfo pairs a member handle with the coordinate metadata a joinNew
// aggregation needs to synthesise an outer coordinate variable: the
// declared coordValue, if any, and (for date-driven scans) the
// pre-formatted timestamp.
type MemberInfo struct {
	Handle             *member.Handle
	CoordValue         string
	FormattedTimestamp string
}

// Plan is everything the planner needs to populate an output dataset for
// one `aggregation` element.
type Plan struct {
	Type                 Type
	DimName              string
	Members              []MemberInfo
	AggregationVariables []string
	CoordinateAxisType   string // user override; empty means let the synthesiser decide
	Cache                varray.CacheLoader
}

func (p Plan) handles() []*member.Handle {
	out := make([]*member.Handle, len(p.Members))
	for i, m := range p.Members {
		out[i] = m.Handle
	}
	return out
}

// joinedGrid additionally remembers which output variable name it
// installed under, so Finalize can find it again to prepend the
// coordinate variable as its outer map.
type joinedGrid struct {
	name string
	grid *vgrid.JoinedGrid
}

// Planner runs a Plan against an output tree. It is stateful only across
// Run and Finalize for a single aggregation (to remember virtual grids
// built in Run that Finalize must patch with the synthesised coordinate).
type Planner struct {
	grids []joinedGrid
}

// Run populates output per plan's aggregation type .
// Finalize must be called afterwards, once the enclosing `netcdf` element
// ends, to resolve the outer coordinate variable.
func (pl *Planner) Run(ctx context.Context, plan Plan, output *cdm.Tree) error {
	switch plan.Type {
	case Union:
		return pl.runUnion(ctx, plan, output)
	case JoinNew:
		return pl.runJoinNew(ctx, plan, output)
	case JoinExisting:
		return pl.runJoinExisting(ctx, plan, output)
	case ForecastModelRunCollection, ForecastModelSingleRunCollection:
		return ncmlerrors.ErrUnimplemented.New(string(plan.Type))
	default:
		return ncmlerrors.ErrSyntaxUser.New("unknown aggregation type " + string(plan.Type))
	}
}

func (pl *Planner) runUnion(ctx context.Context, plan Plan, output *cdm.Tree) error {
	for _, m := range plan.Members {
		tree, err := m.Handle.GetDataTree(ctx)
		if err != nil {
			return ncmlerrors.WithLocation(err, m.Handle.GetLocation())
		}
		if err := mergeDimensions(output, tree); err != nil {
			return ncmlerrors.WithLocation(err, m.Handle.GetLocation())
		}
		mergeAttributes(output.GlobalAttributes(), tree.GlobalAttributes())
		mergeVariables(output.Root, tree.Root, nil)
	}
	return nil
}

func (pl *Planner) runJoinNew(ctx context.Context, plan Plan, output *cdm.Tree) error {
	if len(plan.Members) == 0 {
		return ncmlerrors.ErrSyntaxUser.New("joinNew requires at least one member")
	}
	if plan.DimName == "" {
		return ncmlerrors.ErrSyntaxUser.New("joinNew requires dimName")
	}

	for _, m := range plan.Members {
		tree, err := m.Handle.GetDataTree(ctx)
		if err != nil {
			return ncmlerrors.WithLocation(err, m.Handle.GetLocation())
		}
		if err := mergeDimensions(output, tree); err != nil {
			return ncmlerrors.WithLocation(err, m.Handle.GetLocation())
		}
	}

	if output.Dimensions == nil {
		output.Dimensions = make(map[string]cdm.Dimension)
	}
	output.Dimensions[plan.DimName] = cdm.Dimension{Name: plan.DimName, Size: len(plan.Members), IsShared: true}

	protoTree, err := plan.Members[0].Handle.GetDataTree(ctx)
	if err != nil {
		return ncmlerrors.WithLocation(err, plan.Members[0].Handle.GetLocation())
	}
	mergeAttributes(output.GlobalAttributes(), protoTree.GlobalAttributes())

	handles := plan.handles()
	installed := make(map[string]bool, len(plan.AggregationVariables))
	for _, varName := range plan.AggregationVariables {
		v, ok := protoTree.Root.GetVariable(varName)
		if !ok {
			return ncmlerrors.ErrSyntaxUser.New("aggregation variable " + varName + " not found in first member")
		}
		installed[varName] = true

		switch proto := v.(type) {
		case cdm.Array:
			dims := append([]cdm.Dimension{{Name: plan.DimName, Size: len(plan.Members), IsShared: true}}, proto.Dimensions()...)
			newArr := varray.NewJoinNewArray(varName, proto.Kind(), dims, varName, handles)
			if err := output.Root.AddVariable(newArr); err != nil {
				return err
			}
		case cdm.Grid:
			protoData := proto.DataArray()
			dims := append([]cdm.Dimension{{Name: plan.DimName, Size: len(plan.Members), IsShared: true}}, protoData.Dimensions()...)
			dataArr := varray.NewJoinNewArray(varName, protoData.Kind(), dims, varName, handles)
			grid := vgrid.NewJoinedGrid(varName, proto, dataArr, nil)
			if err := output.Root.AddVariable(grid); err != nil {
				return err
			}
			pl.grids = append(pl.grids, joinedGrid{name: varName, grid: grid})
		default:
			return ncmlerrors.ErrSyntaxUser.New("aggregation variable " + varName + " is neither Array nor Grid")
		}
	}

	mergeVariables(output.Root, protoTree.Root, installed)
	return nil
}

func (pl *Planner) runJoinExisting(ctx context.Context, plan Plan, output *cdm.Tree) error {
	if len(plan.Members) == 0 {
		return ncmlerrors.ErrSyntaxUser.New("joinExisting requires at least one member")
	}
	if plan.DimName == "" {
		return ncmlerrors.ErrSyntaxUser.New("joinExisting requires dimName")
	}

	total := 0
	for _, m := range plan.Members {
		size, err := memberDimSize(ctx, m.Handle, plan.DimName, plan.Cache)
		if err != nil {
			return ncmlerrors.WithLocation(err, m.Handle.GetLocation())
		}
		total += size
	}

	protoTree, err := plan.Members[0].Handle.GetDataTree(ctx)
	if err != nil {
		return ncmlerrors.WithLocation(err, plan.Members[0].Handle.GetLocation())
	}
	if err := mergeDimensions(output, protoTree); err != nil {
		return err
	}
	if output.Dimensions == nil {
		output.Dimensions = make(map[string]cdm.Dimension)
	}
	output.Dimensions[plan.DimName] = cdm.Dimension{Name: plan.DimName, Size: total, IsShared: true}
	mergeAttributes(output.GlobalAttributes(), protoTree.GlobalAttributes())

	handles := plan.handles()
	installed := make(map[string]bool, len(plan.AggregationVariables))
	for _, varName := range plan.AggregationVariables {
		v, ok := protoTree.Root.GetVariable(varName)
		if !ok {
			return ncmlerrors.ErrSyntaxUser.New("aggregation variable " + varName + " not found in first member")
		}
		installed[varName] = true

		switch proto := v.(type) {
		case cdm.Array:
			dims := replaceOuter(proto.Dimensions(), plan.DimName, total)
			newArr := varray.NewJoinExistingArray(varName, proto.Kind(), dims, varName, plan.DimName, handles, plan.Cache)
			if err := output.Root.AddVariable(newArr); err != nil {
				return err
			}
		case cdm.Grid:
			protoData := proto.DataArray()
			dims := replaceOuter(protoData.Dimensions(), plan.DimName, total)
			dataArr := varray.NewJoinExistingArray(varName, protoData.Kind(), dims, varName, plan.DimName, handles, plan.Cache)

			coordVar, ok := protoTree.Root.GetVariable(plan.DimName)
			if !ok {
				return ncmlerrors.ErrAggregation.New("joinExisting grid " + varName + " requires an existing coordinate variable " + plan.DimName)
			}
			coordArr, ok := coordVar.(cdm.Array)
			if !ok {
				return ncmlerrors.ErrAggregation.New("coordinate variable " + plan.DimName + " is not an array")
			}
			outerDims := []cdm.Dimension{{Name: plan.DimName, Size: total, IsShared: true}}
			outerMap := varray.NewJoinExistingArray(plan.DimName, coordArr.Kind(), outerDims, plan.DimName, plan.DimName, handles, plan.Cache)

			grid := vgrid.NewJoinedGrid(varName, proto, dataArr, outerMap)
			if err := output.Root.AddVariable(grid); err != nil {
				return err
			}
		default:
			return ncmlerrors.ErrSyntaxUser.New("aggregation variable " + varName + " is neither Array nor Grid")
		}
	}

	mergeVariables(output.Root, protoTree.Root, installed)
	return nil
}

func replaceOuter(dims []cdm.Dimension, dimName string, size int) []cdm.Dimension {
	out := make([]cdm.Dimension, len(dims))
	copy(out, dims)
	if len(out) > 0 && out[0].Name == dimName {
		out[0] = cdm.Dimension{Name: dimName, Size: size, IsShared: true}
	}
	return out
}

func memberDimSize(ctx context.Context, h *member.Handle, dimName string, cache varray.CacheLoader) (int, error) {
	if cache != nil {
		if err := cache.Load(ctx, h, h.GetLocation()); err != nil {
			return 0, err
		}
	} else if !h.IsDimensionCached(dimName) {
		if _, err := h.GetDataTree(ctx); err != nil {
			return 0, err
		}
	}
	return h.GetCachedDimensionSize(dimName)
}

// Finalize implements  `parentDatasetComplete` signal for
// joinNew: resolve (or validate) the outer coordinate variable and
// prepend it as the outer map of every joined grid built during Run. For
// joinExisting there is no coordinate variable to synthesise, so this is
// a no-op when plan.Type != JoinNew.
func (pl *Planner) Finalize(plan Plan, output *cdm.Tree) error {
	if plan.Type != JoinNew {
		return nil
	}

	if existing, ok := output.Root.GetVariable(plan.DimName); ok {
		arr, ok := existing.(cdm.Array)
		if !ok || len(arr.Dimensions()) != 1 || arr.Dimensions()[0].Size != len(plan.Members) {
			return ncmlerrors.ErrSyntaxUser.New("existing coordinate variable " + plan.DimName + " has the wrong shape")
		}
		pl.attachOuterMaps(arr)
		return nil
	}

	members := make([]coord.Member, len(plan.Members))
	for i, m := range plan.Members {
		members[i] = coord.Member{
			Location:           m.Handle.GetLocation(),
			CoordValue:         m.CoordValue,
			FormattedTimestamp: m.FormattedTimestamp,
		}
	}
	res := coord.Synthesize(plan.DimName, members)
	if err := output.Root.AddVariable(res.Array); err != nil {
		return err
	}
	if plan.CoordinateAxisType != "" {
		res.Array.Attributes().Add(&cdm.Attribute{Name: "_CoordinateAxisType", Kind: cdm.String, Values: []string{plan.CoordinateAxisType}})
	} else if res.AxisAttr != "" {
		res.Array.Attributes().Add(&cdm.Attribute{Name: res.AxisAttr, Kind: cdm.String, Values: []string{res.AxisValue}})
	}
	pl.attachOuterMaps(res.Array)
	return nil
}

func (pl *Planner) attachOuterMaps(coordVar cdm.Array) {
	for _, jg := range pl.grids {
		jg.grid.SetOuterMap(coordVar)
	}
}

func mergeDimensions(output, memberTree *cdm.Tree) error {
	if output.Dimensions == nil {
		output.Dimensions = make(map[string]cdm.Dimension)
	}
	for name, d := range memberTree.Dimensions {
		existing, ok := output.Dimensions[name]
		if !ok {
			output.Dimensions[name] = d
			continue
		}
		if existing.Size != d.Size {
			return ncmlerrors.ErrAggregation.New("dimension " + name + " size mismatch across members")
		}
	}
	return nil
}

func mergeAttributes(output, proto *cdm.AttributeTable) {
	for _, a := range proto.Ordered() {
		if output.Has(a.Name) {
			continue
		}
		output.Add(deepCopyAttribute(a))
	}
}

func deepCopyAttribute(a *cdm.Attribute) *cdm.Attribute {
	if a.IsContainer() {
		newContainer := cdm.NewAttributeTable()
		for _, c := range a.Container.Ordered() {
			newContainer.Add(deepCopyAttribute(c))
		}
		return &cdm.Attribute{Name: a.Name, Kind: a.Kind, Container: newContainer}
	}
	values := append([]string(nil), a.Values...)
	return &cdm.Attribute{Name: a.Name, Kind: a.Kind, Values: values}
}

func mergeVariables(output, proto cdm.Structure, skip map[string]bool) {
	for _, v := range proto.Variables() {
		if skip[v.Name()] {
			continue
		}
		if _, exists := output.GetVariable(v.Name()); exists {
			continue
		}
		_ = output.AddVariable(v)
	}
}
