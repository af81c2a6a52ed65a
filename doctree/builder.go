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

// Package doctree implements the document element tree: it is an
// ncmlxml.Sink that, as start/end/character events arrive, drives the
// overlay engine, the member-handle/scan machinery, and the aggregation
// planner directly against the loaded typed tree in a single downward
// pass, rather than building a separate parse tree first and walking it
// afterwards.
package doctree

import (
	"context"
	"strconv"
	"strings"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/config"
	"github.com/ncmlagg/aggserver/dimcache"
	"github.com/ncmlagg/aggserver/factory"
	"github.com/ncmlagg/aggserver/loader"
	"github.com/ncmlagg/aggserver/logging"
	"github.com/ncmlagg/aggserver/member"
	"github.com/ncmlagg/aggserver/ncmlerrors"
	"github.com/ncmlagg/aggserver/ncmlxml"
	"github.com/ncmlagg/aggserver/overlay"
	"github.com/ncmlagg/aggserver/planner"
	"github.com/ncmlagg/aggserver/pool"
	"github.com/ncmlagg/aggserver/scan"
	"github.com/ncmlagg/aggserver/varray"
)

// ncContext is one in-progress `netcdf` element: its own scope cursor and,
// if it has one, its own in-progress `aggregation` child. A member
// `netcdf` nested inside an `aggregation` (isMember == true) carries
// neither: it only contributes a member.Handle to its parent's plan, and
// rejects any element nested inside it.
type ncContext struct {
	tree            *cdm.Tree
	scopes          *scopeStack
	aggregation     *aggregationFrame
	metadataSeen    bool
	isMember        bool
}

// Builder turns one NcML document into a populated *cdm.Tree. It
// implements ncmlxml.Sink and ncmlxml.OtherXMLReceiver.
type Builder struct {
	ctx      context.Context
	parser   *ncmlxml.Parser
	loaderSvc *loader.Loader
	cache    *dimcache.Store
	catalog  config.CatalogConfig

	// pool tracks every member.Handle created while parsing this document,
	// so a parse failure can force them all closed regardless of how many
	// virtual arrays still hold one, defusing the pool of shared handles
	// an aggregation can build into a de facto reference cycle.
	pool *pool.Pool

	ncStack      []*ncContext
	elementStack []string

	pendingOtherXML *otherXMLPending
	pendingValues   *pendingValues

	result *cdm.Tree
}

type otherXMLPending struct {
	name  string
	table *cdm.AttributeTable
}

// NewBuilder returns a Builder that drives p and, for dataset loads, uses
// loaderSvc. cache may be nil (joinExisting then falls back to loading
// member trees to learn dimension sizes).
func NewBuilder(ctx context.Context, p *ncmlxml.Parser, loaderSvc *loader.Loader, cache *dimcache.Store, catalog config.CatalogConfig) *Builder {
	return &Builder{ctx: ctx, parser: p, loaderSvc: loaderSvc, cache: cache, catalog: catalog, pool: pool.New()}
}

// Result returns the fully-populated root tree once Parse has completed
// successfully.
func (b *Builder) Result() *cdm.Tree {
	return b.result
}

// Pool returns the builder's member-handle pool. Callers should call
// Teardown on it once, only when the overall parse failed, to force-close
// every member handle opened so far.
func (b *Builder) Pool() *pool.Pool {
	return b.pool
}

func (b *Builder) currentNC() *ncContext {
	if len(b.ncStack) == 0 {
		return nil
	}
	return b.ncStack[len(b.ncStack)-1]
}

func (b *Builder) parentTag() string {
	if len(b.elementStack) == 0 {
		return ""
	}
	return b.elementStack[len(b.elementStack)-1]
}

// --- ncmlxml.Sink ---

func (b *Builder) OnStartDocument() error { return nil }
func (b *Builder) OnEndDocument() error   { return nil }

func (b *Builder) OnWarning(msg string) {
	logging.FromContext(b.ctx).Warn(msg)
}

func (b *Builder) OnCharacters(text string) error {
	if b.pendingValues != nil {
		b.pendingValues.text.WriteString(text)
	}
	return nil
}

func (b *Builder) OnOtherXML(text string) error {
	if b.pendingOtherXML == nil {
		return ncmlerrors.ErrInternal.New("doctree: OtherXML callback with no pending attribute")
	}
	overlay.FinishOtherXML(b.pendingOtherXML.table, b.pendingOtherXML.name, text)
	b.pendingOtherXML = nil
	return nil
}

func (b *Builder) OnStartElement(name string, attrs map[string]string) error {
	var err error
	switch name {
	case "netcdf":
		err = b.beginNetcdf(attrs)
	case "aggregation":
		err = b.beginAggregation(attrs)
	case "scan":
		err = b.beginScan(attrs)
	case "dimension":
		err = b.beginDimension(attrs)
	case "remove":
		err = b.beginRemove(attrs)
	case "explicit", "readMetadata":
		err = b.beginMetadataDirective(name, attrs)
	case "attribute":
		err = b.beginAttribute(attrs)
	case "variable":
		err = b.beginVariable(attrs)
	case "values":
		err = b.beginValues(attrs)
	default:
		err = ncmlerrors.ErrParse.New("unknown element " + name)
	}
	if err != nil {
		return err
	}
	b.elementStack = append(b.elementStack, name)
	return nil
}

func (b *Builder) OnEndElement(name string) error {
	b.elementStack = b.elementStack[:len(b.elementStack)-1]
	switch name {
	case "netcdf":
		return b.endNetcdf()
	case "aggregation":
		return b.endAggregation()
	case "attribute":
		b.currentNC().scopes.pop()
		return nil
	case "variable":
		b.currentNC().scopes.pop()
		return nil
	case "values":
		return b.endValues()
	case "scan", "dimension", "remove", "explicit", "readMetadata":
		if nc := b.currentNC(); nc != nil && nc.scopes != nil {
			nc.scopes.pop()
		}
		return nil
	default:
		return nil
	}
}

// --- netcdf ---

var netcdfAttrs = []string{"location", "id", "title", "enhance", "addRecords", "coordValue", "ncoords", "iosp", "iospParam"}

func (b *Builder) beginNetcdf(attrs map[string]string) error {
	if err := validateAttrs("netcdf", attrs, netcdfAttrs...); err != nil {
		return err
	}

	parent := b.currentNC()
	if parent == nil {
		tree, err := b.loadRootTree(attrs["location"])
		if err != nil {
			return err
		}
		b.ncStack = append(b.ncStack, &ncContext{
			tree:   tree,
			scopes: newScopeStack(tree.GlobalAttributes(), tree.Root),
		})
		return nil
	}

	if parent.isMember {
		return ncmlerrors.ErrUnimplemented.New("nested elements inside a member netcdf")
	}
	if parent.aggregation == nil {
		return ncmlerrors.ErrParse.New("netcdf: nested netcdf is only legal inside an aggregation")
	}
	location := attrs["location"]
	if location == "" {
		return ncmlerrors.ErrParse.New("netcdf: member netcdf requires a location")
	}
	h := member.NewFromLocation(location, b.loaderSvc, loader.DataKind)
	b.pool.Track(h)
	parent.aggregation.plan.Members = append(parent.aggregation.plan.Members, planner.MemberInfo{
		Handle:     h,
		CoordValue: attrs["coordValue"],
	})
	b.ncStack = append(b.ncStack, &ncContext{isMember: true})
	return nil
}

func (b *Builder) loadRootTree(location string) (*cdm.Tree, error) {
	if location == "" {
		return &cdm.Tree{Root: cdm.NewMemStructure("root"), Dimensions: make(map[string]cdm.Dimension)}, nil
	}
	tree, err := b.loaderSvc.Load(b.ctx, location, loader.DataKind)
	if err != nil {
		return nil, err
	}
	if tree.Dimensions == nil {
		tree.Dimensions = make(map[string]cdm.Dimension)
	}
	return tree, nil
}

func (b *Builder) endNetcdf() error {
	nc := b.ncStack[len(b.ncStack)-1]
	b.ncStack = b.ncStack[:len(b.ncStack)-1]
	if nc.isMember {
		return nil
	}

	if nc.aggregation != nil {
		if err := nc.aggregation.pl.Finalize(nc.aggregation.plan, nc.tree); err != nil {
			return err
		}
	}
	if len(b.ncStack) == 0 {
		b.result = nc.tree
	}
	return nil
}

// --- aggregation ---

var aggregationAttrs = []string{"type", "dimName", "recheckEvery"}

func (b *Builder) beginAggregation(attrs map[string]string) error {
	if b.parentTag() != "netcdf" {
		return ncmlerrors.ErrParse.New("aggregation: must be a direct child of netcdf")
	}
	if err := validateAttrs("aggregation", attrs, aggregationAttrs...); err != nil {
		return err
	}
	nc := b.currentNC()
	if nc == nil || nc.isMember {
		return ncmlerrors.ErrParse.New("aggregation: not legal here")
	}
	if nc.aggregation != nil {
		return ncmlerrors.ErrSyntaxUser.New("aggregation: only one aggregation is allowed per netcdf")
	}
	typ, ok := allowedAggregationTypes[attrs["type"]]
	if !ok {
		return ncmlerrors.ErrParse.New("aggregation: unknown type " + attrs["type"])
	}
	nc.aggregation = &aggregationFrame{plan: planner.Plan{Type: typ, DimName: attrs["dimName"], Cache: b.cacheLoader()}}
	return nil
}

// cacheLoader returns b.cache as a varray.CacheLoader, or nil when no
// cache was configured. Returning the *dimcache.Store directly would wrap
// a nil pointer in a non-nil interface value (plan.Cache != nil would
// then hold even with no cache), so the nil check has to happen here.
func (b *Builder) cacheLoader() varray.CacheLoader {
	if b.cache == nil {
		return nil
	}
	return b.cache
}

func (b *Builder) endAggregation() error {
	nc := b.currentNC()
	frame := nc.aggregation
	return frame.pl.Run(b.ctx, frame.plan, nc.tree)
}

// --- scan ---

var scanAttrs = []string{"location", "suffix", "regExp", "subdirs", "olderThan", "dateFormatMark", "enhance"}

func (b *Builder) beginScan(attrs map[string]string) error {
	if b.parentTag() != "aggregation" {
		return ncmlerrors.ErrParse.New("scan: must be a direct child of aggregation")
	}
	if err := validateAttrs("scan", attrs, scanAttrs...); err != nil {
		return err
	}
	if attrs["enhance"] != "" {
		return ncmlerrors.ErrUnimplemented.New("scan enhance attribute")
	}

	nc := b.currentNC()
	frame := nc.aggregation

	subdirs := true
	if v := attrs["subdirs"]; v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return ncmlerrors.ErrParse.New("scan: invalid subdirs value " + v)
		}
		subdirs = parsed
	}

	opts := scan.Options{
		Location:                 attrs["location"],
		Suffix:                   attrs["suffix"],
		RegExp:                   attrs["regExp"],
		Subdirs:                  subdirs,
		OlderThan:                attrs["olderThan"],
		DateFormatMark:           attrs["dateFormatMark"],
		CatalogRoot:              b.catalog.CatalogRoot,
		AllowSymlinksOutsideRoot: b.catalog.AllowSymlinksOutsideRoot,
		AllowParentTraversal:     b.catalog.AllowParentTraversal,
	}
	members, err := scan.Resolve(opts)
	if err != nil {
		return err
	}
	for _, m := range members {
		h := member.NewFromLocation(m.Location, b.loaderSvc, loader.DataKind)
		b.pool.Track(h)
		info := planner.MemberInfo{Handle: h}
		if opts.DateFormatMark != "" {
			info.FormattedTimestamp = m.CoordValue
		}
		frame.plan.Members = append(frame.plan.Members, info)
	}
	frame.scanSeen = true
	nc.scopes.pushSame("scan")
	return nil
}

// --- dimension ---

var dimensionAttrs = []string{"name", "length", "orgName", "isUnlimited", "isShared", "isVariableLength"}
var dimensionUnhandled = []string{"orgName", "isUnlimited", "isShared", "isVariableLength"}

func (b *Builder) beginDimension(attrs map[string]string) error {
	if err := validateAttrs("dimension", attrs, dimensionAttrs...); err != nil {
		return err
	}
	for _, k := range dimensionUnhandled {
		if attrs[k] != "" {
			return ncmlerrors.ErrParse.New("dimension: attribute " + k + " is not supported")
		}
	}
	nc := b.currentNC()
	if nc == nil || nc.tree == nil {
		return ncmlerrors.ErrParse.New("dimension: not legal here")
	}
	name := attrs["name"]
	if name == "" {
		return ncmlerrors.ErrParse.New("dimension: name is required")
	}
	if _, exists := nc.tree.Dimensions[name]; exists {
		return ncmlerrors.ErrSyntaxUser.New("dimension: " + name + " already exists in this scope")
	}
	length, err := strconv.Atoi(attrs["length"])
	if err != nil || length < 0 {
		return ncmlerrors.ErrParse.New("dimension: length must be a non-negative integer")
	}
	nc.tree.Dimensions[name] = cdm.Dimension{Name: name, Size: length, IsShared: true}
	nc.scopes.pushSame("dimension")
	return nil
}

// --- remove ---

func (b *Builder) beginRemove(attrs map[string]string) error {
	if err := validateAttrs("remove", attrs, "name", "type"); err != nil {
		return err
	}
	if t := attrs["type"]; t != "" && t != "attribute" {
		return ncmlerrors.ErrParse.New("remove: unsupported type " + t)
	}
	nc := b.currentNC()
	if nc == nil || nc.scopes == nil {
		return ncmlerrors.ErrParse.New("remove: not legal here")
	}
	if err := overlay.RemoveAttribute(nc.scopes.currentAttrs(), attrs["name"]); err != nil {
		return err
	}
	nc.scopes.pushSame("remove")
	return nil
}

// --- explicit / readMetadata ---

func (b *Builder) beginMetadataDirective(name string, attrs map[string]string) error {
	if err := validateAttrs(name, attrs); err != nil {
		return err
	}
	nc := b.currentNC()
	if nc == nil || nc.tree == nil {
		return ncmlerrors.ErrParse.New(name + ": not legal here")
	}
	if nc.metadataSeen {
		return ncmlerrors.ErrSyntaxUser.New("explicit and readMetadata are mutually exclusive, at most one per netcdf")
	}
	nc.metadataSeen = true
	if name == "explicit" {
		overlay.ClearAll(nc.tree)
	}
	nc.scopes.pushSame(name)
	return nil
}

// --- attribute ---

var attributeAttrs = []string{"name", "type", "value", "separator", "orgName"}

func (b *Builder) beginAttribute(attrs map[string]string) error {
	if err := validateAttrs("attribute", attrs, attributeAttrs...); err != nil {
		return err
	}
	nc := b.currentNC()
	if nc == nil || nc.scopes == nil {
		return ncmlerrors.ErrParse.New("attribute: not legal here")
	}
	name := attrs["name"]
	if name == "" {
		return ncmlerrors.ErrParse.New("attribute: name is required")
	}
	typeName := factory.NormalizeTypeName(attrs["type"])
	table := nc.scopes.currentAttrs()

	switch {
	case attrs["orgName"] != "":
		if err := overlay.RenameAttribute(table, attrs["orgName"], name, typeName, attrs["value"], attrs["separator"]); err != nil {
			return err
		}
		nc.scopes.pushSame("attribute")

	case typeName == "OtherXML":
		if err := overlay.BeginOtherXML(name, attrs["value"]); err != nil {
			return err
		}
		b.parser.BeginOtherXML()
		b.pendingOtherXML = &otherXMLPending{name: name, table: table}
		nc.scopes.pushSame("attribute")

	case typeName == "Structure":
		container, err := overlay.EnterOrCreateContainer(table, name, attrs["value"])
		if err != nil {
			return err
		}
		nc.scopes.push(scopeFrame{tag: "attribute", attrs: container})

	default:
		if err := overlay.AddOrModifyAttribute(table, name, typeName, attrs["value"], attrs["separator"]); err != nil {
			return err
		}
		nc.scopes.pushSame("attribute")
	}
	return nil
}

// --- variable ---

func (b *Builder) beginVariable(attrs map[string]string) error {
	nc := b.currentNC()
	if nc == nil || nc.scopes == nil {
		return ncmlerrors.ErrParse.New("variable: not legal here")
	}

	if b.parentTag() == "aggregation" {
		if err := validateAttrs("variable", attrs, "name"); err != nil {
			return err
		}
		name := attrs["name"]
		if name == "" {
			return ncmlerrors.ErrParse.New("variable: name is required")
		}
		nc.aggregation.plan.AggregationVariables = append(nc.aggregation.plan.AggregationVariables, name)
		nc.scopes.pushSame("variable")
		return nil
	}

	if err := validateAttrs("variable", attrs, "name", "type", "shape", "orgName"); err != nil {
		return err
	}
	name := attrs["name"]
	typeName := factory.NormalizeTypeName(attrs["type"])
	shape := attrs["shape"]
	orgName := attrs["orgName"]
	isChar := typeName == "char"

	scope := nc.scopes.currentStructure()
	if scope == nil {
		return ncmlerrors.ErrParse.New("variable: current scope does not accept variables")
	}

	if orgName != "" {
		v, err := b.renameVariable(scope, orgName, name)
		if err != nil {
			return err
		}
		child, _ := v.(cdm.Structure)
		nc.scopes.push(scopeFrame{tag: "variable", attrs: v.Attributes(), structure: child, variable: v, isChar: isChar})
		return nil
	}

	if name != "" {
		if existing, ok := scope.GetVariable(name); ok {
			if !overlay.VariableTypeMatches(existing, typeName) {
				return ncmlerrors.ErrSyntaxUser.New("variable: " + name + " exists with an incompatible type")
			}
			child, _ := existing.(cdm.Structure)
			nc.scopes.push(scopeFrame{tag: "variable", attrs: existing.Attributes(), structure: child, variable: existing, isChar: isChar})
			return nil
		}
	}

	if name == "" {
		return ncmlerrors.ErrParse.New("variable: name is required")
	}
	if typeName == "" {
		return ncmlerrors.ErrParse.New("variable: type is required to create " + name)
	}
	kind, err := factory.Classify(typeName)
	if err != nil {
		return err
	}
	if kind == cdm.Unknown {
		return ncmlerrors.ErrParse.New("variable: unknown type " + typeName)
	}
	newVar, err := factory.MakeVariable(kind, name)
	if err != nil {
		return err
	}
	if shape != "" {
		dims, err := b.resolveShape(nc, shape)
		if err != nil {
			return err
		}
		ma, ok := newVar.(*cdm.MemArray)
		if !ok {
			return ncmlerrors.ErrParse.New("variable: shape given for a non-array variable")
		}
		ma.SetDimensions(dims)
	}
	if err := scope.AddVariable(newVar); err != nil {
		return err
	}
	child, _ := newVar.(cdm.Structure)
	nc.scopes.push(scopeFrame{tag: "variable", attrs: newVar.Attributes(), structure: child, variable: newVar, isChar: isChar})
	return nil
}

func (b *Builder) renameVariable(scope cdm.Structure, orgName, name string) (cdm.Variable, error) {
	existing, ok := scope.GetVariable(orgName)
	if !ok {
		return nil, ncmlerrors.ErrSyntaxUser.New("variable: orgName " + orgName + " does not exist")
	}
	if name == "" {
		return nil, ncmlerrors.ErrParse.New("variable: rename requires name")
	}
	if _, clash := scope.GetVariable(name); clash {
		return nil, ncmlerrors.ErrSyntaxUser.New("variable: " + name + " already exists")
	}
	var renamed cdm.Variable
	if arr, ok := existing.(cdm.Array); ok {
		renamed = overlay.NewRenamedArray(arr, name)
	} else {
		existing.SetName(name)
		renamed = existing
	}
	if err := scope.RemoveVariable(orgName); err != nil {
		return nil, err
	}
	if err := scope.AddVariable(renamed); err != nil {
		return nil, err
	}
	return renamed, nil
}

func (b *Builder) resolveShape(nc *ncContext, shape string) ([]cdm.Dimension, error) {
	names := strings.Fields(shape)
	dims := make([]cdm.Dimension, 0, len(names))
	for _, n := range names {
		d, ok := nc.tree.Dimensions[n]
		if !ok {
			return nil, ncmlerrors.ErrParse.New("variable: unknown dimension " + n + " in shape")
		}
		dims = append(dims, d)
	}
	return dims, nil
}

// --- values ---

func (b *Builder) beginValues(attrs map[string]string) error {
	if err := validateAttrs("values", attrs, "start", "increment", "separator"); err != nil {
		return err
	}
	nc := b.currentNC()
	if nc == nil || nc.scopes == nil {
		return ncmlerrors.ErrParse.New("values: not legal here")
	}
	top := nc.scopes.top()
	if top.tag != "variable" || top.variable == nil {
		return ncmlerrors.ErrParse.New("values: must be a child of variable")
	}
	arr, ok := top.variable.(*cdm.MemArray)
	if !ok {
		return ncmlerrors.ErrParse.New("values: variable does not accept values")
	}
	b.pendingValues = &pendingValues{
		arr:       arr,
		kind:      arr.Kind(),
		isChar:    top.isChar,
		start:     attrs["start"],
		increment: attrs["increment"],
		separator: attrs["separator"],
	}
	nc.scopes.pushSame("values")
	return nil
}

func (b *Builder) endValues() error {
	pv := b.pendingValues
	if pv == nil {
		return ncmlerrors.ErrInternal.New("values: end with no pending state")
	}
	b.pendingValues = nil
	defer b.currentNC().scopes.pop()

	if pv.start != "" && pv.increment != "" {
		startVal, err := parseKindValue(pv.kind, pv.isChar, pv.start)
		if err != nil {
			return err
		}
		incVal, err := parseKindValue(pv.kind, pv.isChar, pv.increment)
		if err != nil {
			return err
		}
		n := pv.arr.TotalLen()
		if n == 0 {
			n = 1
		}
		values := make([]interface{}, n)
		cur := startVal
		for i := 0; i < n; i++ {
			values[i] = cur
			cur = addKindValue(pv.kind, pv.isChar, cur, incVal)
		}
		pv.arr.SetValues(values)
		return nil
	}

	tokens := overlay.Tokenize(pv.text.String(), pv.separator)
	if n := pv.arr.TotalLen(); n != 0 && len(tokens) != n {
		return ncmlerrors.ErrParse.New("values: expected " + strconv.Itoa(n) + " tokens, got " + strconv.Itoa(len(tokens)))
	}
	values := make([]interface{}, len(tokens))
	for i, tok := range tokens {
		v, err := parseKindValue(pv.kind, pv.isChar, tok)
		if err != nil {
			return err
		}
		values[i] = v
	}
	pv.arr.SetValues(values)
	return nil
}
