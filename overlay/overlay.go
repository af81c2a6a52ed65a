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

// Package overlay implements the attribute/variable overlay engine: the
// add/modify/rename/container/OtherXML operations an `attribute` element
// performs against the current attribute table, and the
// create/rename/enter operations a `variable` element performs against
// the current structure scope.
package overlay

import (
	"strings"

	"github.com/ncmlagg/aggserver/cdm"
	"github.com/ncmlagg/aggserver/factory"
	"github.com/ncmlagg/aggserver/ncmlerrors"
)

// Tokenize splits value by the character class in separator if
// non-empty, else by whitespace. kind String/URL/OtherXML is never
// tokenised; callers should not call Tokenize for those kinds.
func Tokenize(value, separator string) []string {
	if value == "" {
		return nil
	}
	if separator == "" {
		return strings.Fields(value)
	}
	isSep := func(r rune) bool { return strings.ContainsRune(separator, r) }
	parts := strings.FieldsFunc(value, isSep)
	return parts
}

func neverTokenised(k cdm.Kind) bool {
	return k == cdm.String || k == cdm.URL
}

// AddOrModifyAttribute implements the Add/Modify cases : if
// name does not yet exist at table, it is appended; if it does, the
// existing entry is deleted and re-added (preserving append ordering).
func AddOrModifyAttribute(table *cdm.AttributeTable, name, typeName, value, separator string) error {
	if typeName == "" {
		typeName = "String"
	}
	kind, err := factory.Classify(typeName)
	if err != nil {
		return err
	}

	var values []string
	if neverTokenised(kind) {
		if value != "" {
			values = []string{value}
		}
	} else {
		values = Tokenize(value, separator)
	}

	attr := &cdm.Attribute{Name: name, Kind: kind, Values: values}
	if table.Has(name) {
		table.Replace(name, attr)
	} else {
		table.Add(attr)
	}
	return nil
}

// RenameAttribute renames an existing attribute: orgName must exist and
// name must not. If value is also non-empty, the renamed attribute's
// values are additionally overwritten.
func RenameAttribute(table *cdm.AttributeTable, orgName, name, typeName, value, separator string) error {
	if !table.Has(orgName) {
		return ncmlerrors.ErrSyntaxUser.New("rename: attribute " + orgName + " does not exist")
	}
	if table.Has(name) {
		return ncmlerrors.ErrSyntaxUser.New("rename: attribute " + name + " already exists")
	}
	renamed, _ := table.Rename(orgName, name)
	if value != "" {
		kind := renamed.Kind
		if typeName != "" {
			k, err := factory.Classify(typeName)
			if err != nil {
				return err
			}
			kind = k
		}
		if neverTokenised(kind) {
			renamed.Values = []string{value}
		} else {
			renamed.Values = Tokenize(value, separator)
		}
		renamed.Kind = kind
	}
	return nil
}

// EnterOrCreateContainer enters or creates a Structure-typed attribute
// container: value must be empty. Returns the container table, creating
// it if name does not yet exist at table.
func EnterOrCreateContainer(table *cdm.AttributeTable, name, value string) (*cdm.AttributeTable, error) {
	if value != "" {
		return nil, ncmlerrors.ErrSyntaxUser.New("attribute container " + name + " must not carry a value")
	}
	if existing, ok := table.Get(name); ok {
		if !existing.IsContainer() {
			return nil, ncmlerrors.ErrSyntaxUser.New("attribute " + name + " is not a container")
		}
		return existing.Container, nil
	}
	container := cdm.NewAttributeTable()
	table.Add(&cdm.Attribute{Name: name, Kind: cdm.StructureKind, Container: container})
	return container, nil
}

// BeginOtherXML validates the preconditions for an OtherXML attribute:
// value and content are mutually exclusive, and it may not be a vector
// (enforced by the caller only ever calling FinishOtherXML with a single
// captured string).
func BeginOtherXML(name, value string) error {
	if value != "" {
		return ncmlerrors.ErrSyntaxUser.New("OtherXML attribute " + name + " must not also set value")
	}
	return nil
}

// FinishOtherXML installs the captured XML text as attribute name's sole
// value. OtherXML is represented here as String, same as any other
// vectorised atomic attribute stored as an ordered sequence of strings
// under its canonical type — OtherXML has no further distinguishing
// runtime behaviour once captured.
func FinishOtherXML(table *cdm.AttributeTable, name, captured string) {
	attr := &cdm.Attribute{Name: name, Kind: cdm.String, Values: []string{captured}}
	if table.Has(name) {
		table.Replace(name, attr)
	} else {
		table.Add(attr)
	}
}

// RemoveAttribute implements  `remove` for type="attribute":
// the named attribute (possibly a container, removed recursively since
// Go's GC reclaims its nested table with it) must exist.
func RemoveAttribute(table *cdm.AttributeTable, name string) error {
	if !table.Remove(name) {
		return ncmlerrors.ErrSyntaxUser.New("remove: attribute " + name + " does not exist")
	}
	return nil
}

// ClearAll implements  "Clearing attributes for <explicit/>":
// recursively erase the table of every variable, and the global table.
func ClearAll(tree *cdm.Tree) {
	clearStructure(tree.Root)
}

func clearStructure(s cdm.Structure) {
	if s == nil {
		return
	}
	s.Attributes().Clear()
	for _, v := range s.Variables() {
		v.Attributes().Clear()
		if child, ok := v.(cdm.Structure); ok {
			clearStructure(child)
		}
	}
}

// VariableTypeMatches reports whether an existing variable may be reused
// under the given declared type name: empty typeName matches any
// existing variable; "Structure" matches any composite kind; array
// variables are matched permissively, any non-composite kind matching
// any other.
func VariableTypeMatches(existing cdm.Variable, typeName string) bool {
	if typeName == "" {
		return true
	}
	kind, err := factory.Classify(typeName)
	if err != nil {
		return false
	}
	if kind.IsComposite() {
		return existing.Kind().IsComposite()
	}
	return !existing.Kind().IsComposite()
}
