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

package doctree

import "github.com/ncmlagg/aggserver/cdm"

// scopeFrame is one entry of the overlay scope stack : the current attribute table, and — where the element
// also accepts variable additions — the current structure. A nil
// structure means the frame was entered through an atomic attribute or a
// scalar variable, where no further `variable` child is legal.
type scopeFrame struct {
	tag       string
	attrs     *cdm.AttributeTable
	structure cdm.Structure
	// variable is set only for frames entered via a `variable` element, so
	// a nested `values` element can find the array it populates.
	variable cdm.Variable
	// isChar records whether the variable was declared with type "char",
	// so a nested `values` element can take one literal character per
	// token instead of parsing it as a number.
	isChar bool
}

// scopeStack tracks the nested sequence of frames for one in-progress
// `netcdf` element. Every element inside it other than `aggregation`
// pushes exactly one frame on OnStartElement and pops it on the matching
// OnEndElement, so push/pop calls always stay balanced regardless of
// whether the element itself changes scope. A `netcdf` element starts a
// new stack with its own root frame, and `aggregation` pushes nothing.
type scopeStack struct {
	frames []scopeFrame
}

func newScopeStack(rootAttrs *cdm.AttributeTable, rootStruct cdm.Structure) *scopeStack {
	return &scopeStack{frames: []scopeFrame{{tag: "netcdf", attrs: rootAttrs, structure: rootStruct}}}
}

func (s *scopeStack) top() scopeFrame {
	return s.frames[len(s.frames)-1]
}

// push appends a new frame on top of the current one, tag-labelled for
// diagnostics.
func (s *scopeStack) push(f scopeFrame) {
	s.frames = append(s.frames, f)
}

// pushSame duplicates the current top frame under a new tag, used by
// elements that read the current scope but never change it (dimension,
// remove, values, plain atomic attribute).
func (s *scopeStack) pushSame(tag string) {
	top := s.top()
	top.tag = tag
	s.push(top)
}

func (s *scopeStack) pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *scopeStack) currentAttrs() *cdm.AttributeTable {
	return s.top().attrs
}

func (s *scopeStack) currentStructure() cdm.Structure {
	return s.top().structure
}
