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

// Package varray implements the virtual aggregated array :
// an array whose values are streamed, on read, from the corresponding
// member datasets rather than materialised up front. Two variants share
// the base read/reserve contract: JoinNewArray aggregates over a brand
// new outer dimension (one member per outer index); JoinExistingArray
// aggregates over a dimension already present on each member, the new
// outer size being the sum of the per-member sizes.
package varray

import (
	"context"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/member"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// CacheLoader is the subset of dimcache.Store a virtual array consults to
// learn a member's size along the joined dimension without loading its
// typed tree,  "the planner and the virtual variables
// consult the cache, not the trees, to compute offsets".
type CacheLoader interface {
	Load(ctx context.Context, h *member.Handle, memberLocalID string) error
}

// StreamInto reads src under constraint and copies its values into dst
// starting at offset, growing dst if needed. Grounded on the original
// AggregationUtil::addDataToArray, which both variants of the original
// virtual array (and the virtual grid) call through a single shared
// helper instead of duplicating the copy loop.
func StreamInto(ctx context.Context, dst *cdm.Buffer, src cdm.Array, constraint cdm.Constraints, offset int) (int, error) {
	buf, err := src.Read(ctx, constraint)
	if err != nil {
		return 0, err
	}
	for i, v := range buf.Values {
		idx := offset + i
		if idx < len(dst.Values) {
			dst.Values[idx] = v
		} else {
			dst.Values = append(dst.Values, v)
		}
	}
	return len(buf.Values), nil
}

// locateVariable finds name in h's tree and resolves it to an Array: a
// Grid resolves to its own DataArray, since a grid-typed aggregation
// variable's values live there, not on the Grid itself.
func locateVariable(ctx context.Context, h *member.Handle, name, location string) (cdm.Array, error) {
	tree, err := h.GetDataTree(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := tree.Root.GetVariable(name)
	if !ok {
		return nil, ncmlerrors.ErrAggregation.New("member " + location + " is missing aggregation variable " + name)
	}
	if g, ok := v.(cdm.Grid); ok {
		return g.DataArray(), nil
	}
	arr, ok := v.(cdm.Array)
	if !ok {
		return nil, ncmlerrors.ErrAggregation.New("member " + location + " variable " + name + " is not an array")
	}
	return arr, nil
}

// JoinNewArray is variant 1 : one outer index per member.
type JoinNewArray struct {
	name    string
	kind    cdm.Kind
	attrs   *cdm.AttributeTable
	dims    []cdm.Dimension
	varName string
	members []*member.Handle

	readP          bool
	lastConstraint cdm.Constraints
	cached         *cdm.Buffer
}

// NewJoinNewArray constructs a join-on-new-dimension virtual array. dims
// is the output shape: the new outer dimension (size == len(members))
// followed by the prototype's own dimensions.
func NewJoinNewArray(name string, kind cdm.Kind, dims []cdm.Dimension, varName string, members []*member.Handle) *JoinNewArray {
	return &JoinNewArray{name: name, kind: kind, attrs: cdm.NewAttributeTable(), dims: dims, varName: varName, members: members}
}

func (a *JoinNewArray) Name() string               { return a.name }
func (a *JoinNewArray) SetName(name string)        { a.name = name }
func (a *JoinNewArray) Kind() cdm.Kind              { return a.kind }
func (a *JoinNewArray) Attributes() *cdm.AttributeTable { return a.attrs }
func (a *JoinNewArray) Dimensions() []cdm.Dimension { return a.dims }
func (a *JoinNewArray) ReadP() bool                 { return a.readP }
func (a *JoinNewArray) SetReadP(v bool)             { a.readP = v }

// Read streams each member's array into the outer joined-dimension slot
// the constraint selects.
func (a *JoinNewArray) Read(ctx context.Context, constraint cdm.Constraints) (*cdm.Buffer, error) {
	if a.readP && constraintsEqual(a.lastConstraint, constraint) {
		return a.cached, nil
	}
	if len(constraint) == 0 {
		full := make(cdm.Constraints, len(a.dims))
		for i, d := range a.dims {
			full[i] = cdm.FullConstraint(d.Size)
		}
		constraint = full
	}
	outer := constraint[0]
	template := constraint.DropOuter()

	out := &cdm.Buffer{Kind: a.kind, Values: make([]interface{}, constraint.TotalLen())}
	offset := 0
	for _, idx := range outer.Indices() {
		if idx < 0 || idx >= len(a.members) {
			return nil, ncmlerrors.ErrAggregation.New("outer index out of range for join-new array")
		}
		h := a.members[idx]
		arr, err := locateVariable(ctx, h, a.varName, h.GetLocation())
		if err != nil {
			return nil, ncmlerrors.WithLocation(err, h.GetLocation())
		}
		n, err := StreamInto(ctx, out, arr, template, offset)
		if err != nil {
			return nil, ncmlerrors.WithLocation(err, h.GetLocation())
		}
		offset += n
	}

	a.lastConstraint = constraint
	a.readP = true
	a.cached = out
	return out, nil
}

// JoinExistingArray is variant 2 : the joined dimension
// already exists on each member; offsets are resolved by walking member
// sizes fetched from the dimension cache.
type JoinExistingArray struct {
	name    string
	kind    cdm.Kind
	attrs   *cdm.AttributeTable
	dims    []cdm.Dimension
	varName string
	dimName string
	members []*member.Handle
	cache   CacheLoader

	readP          bool
	lastConstraint cdm.Constraints
	cached         *cdm.Buffer
}

// NewJoinExistingArray constructs a join-on-existing-dimension virtual
// array. cache may be nil, in which case member sizes are resolved by
// loading each member's typed tree on demand.
func NewJoinExistingArray(name string, kind cdm.Kind, dims []cdm.Dimension, varName, dimName string, members []*member.Handle, cache CacheLoader) *JoinExistingArray {
	return &JoinExistingArray{name: name, kind: kind, attrs: cdm.NewAttributeTable(), dims: dims, varName: varName, dimName: dimName, members: members, cache: cache}
}

func (a *JoinExistingArray) Name() string               { return a.name }
func (a *JoinExistingArray) SetName(name string)        { a.name = name }
func (a *JoinExistingArray) Kind() cdm.Kind              { return a.kind }
func (a *JoinExistingArray) Attributes() *cdm.AttributeTable { return a.attrs }
func (a *JoinExistingArray) Dimensions() []cdm.Dimension { return a.dims }
func (a *JoinExistingArray) ReadP() bool                 { return a.readP }
func (a *JoinExistingArray) SetReadP(v bool)             { a.readP = v }

func (a *JoinExistingArray) memberSize(ctx context.Context, h *member.Handle) (int, error) {
	if a.cache != nil {
		if err := a.cache.Load(ctx, h, h.GetLocation()); err != nil {
			return 0, err
		}
	} else if !h.IsDimensionCached(a.dimName) {
		if _, err := h.GetDataTree(ctx); err != nil {
			return 0, err
		}
	}
	return h.GetCachedDimensionSize(a.dimName)
}

// Read maps the constrained outer index range through a running
// currentMemberIndex/currentMemberHead/currentMemberSize triple that
// tracks which member owns each successive outer index.
func (a *JoinExistingArray) Read(ctx context.Context, constraint cdm.Constraints) (*cdm.Buffer, error) {
	if a.readP && constraintsEqual(a.lastConstraint, constraint) {
		return a.cached, nil
	}
	if len(constraint) == 0 {
		full := make(cdm.Constraints, len(a.dims))
		for i, d := range a.dims {
			full[i] = cdm.FullConstraint(d.Size)
		}
		constraint = full
	}
	outer := constraint[0]
	innerTemplate := constraint.DropOuter()

	out := &cdm.Buffer{Kind: a.kind, Values: make([]interface{}, constraint.TotalLen())}
	offset := 0

	currentMemberIndex := 0
	currentMemberHead := 0
	currentMemberSize := 0
	memberRead := false
	if len(a.members) > 0 {
		size, err := a.memberSize(ctx, a.members[0])
		if err != nil {
			return nil, ncmlerrors.WithLocation(err, a.members[0].GetLocation())
		}
		currentMemberSize = size
	}

	for _, i := range outer.Indices() {
		for currentMemberSize > 0 && i-currentMemberHead >= currentMemberSize {
			currentMemberIndex++
			currentMemberHead += currentMemberSize
			memberRead = false
			if currentMemberIndex >= len(a.members) {
				return nil, ncmlerrors.ErrAggregation.New("outer index out of range for join-existing array")
			}
			size, err := a.memberSize(ctx, a.members[currentMemberIndex])
			if err != nil {
				return nil, ncmlerrors.WithLocation(err, a.members[currentMemberIndex].GetLocation())
			}
			currentMemberSize = size
		}

		if memberRead {
			continue
		}

		h := a.members[currentMemberIndex]
		localStart := i - currentMemberHead
		localStop := min(outer.Stop-currentMemberHead, currentMemberSize-1)
		localStride := min(outer.Stride, currentMemberSize)
		localOuter := cdm.Constraint{Start: localStart, Stride: localStride, Stop: localStop}

		memberConstraint := append(cdm.Constraints{localOuter}, innerTemplate...)
		arr, err := locateVariable(ctx, h, a.varName, h.GetLocation())
		if err != nil {
			return nil, ncmlerrors.WithLocation(err, h.GetLocation())
		}
		n, err := StreamInto(ctx, out, arr, memberConstraint, offset)
		if err != nil {
			return nil, ncmlerrors.WithLocation(err, h.GetLocation())
		}
		offset += n
		memberRead = true
	}

	a.lastConstraint = constraint
	a.readP = true
	a.cached = out
	return out, nil
}

func constraintsEqual(a, b cdm.Constraints) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
