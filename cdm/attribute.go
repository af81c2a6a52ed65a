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

package cdm

// Attribute is a named, typed, possibly vectorized value, or (when Kind ==
// StructureKind) a nested container of further attributes .
type Attribute struct {
	Name      string
	Kind      Kind
	Values    []string // vectorised atomic values, ordered 
	Container *AttributeTable
}

// IsContainer reports whether this attribute is a nested Structure
// container rather than an atomic/vector value.
func (a *Attribute) IsContainer() bool {
	return a.Kind == StructureKind && a.Container != nil
}

// AttributeTable is an ordered, name-indexed collection of attributes. It
// is the "current attribute table" the overlay engine's scope cursor
// resolves to .
type AttributeTable struct {
	order []string
	byKey map[string]*Attribute
}

// NewAttributeTable returns an empty table.
func NewAttributeTable() *AttributeTable {
	return &AttributeTable{byKey: make(map[string]*Attribute)}
}

// Get returns the attribute named name, or (nil, false).
func (t *AttributeTable) Get(name string) (*Attribute, bool) {
	a, ok := t.byKey[name]
	return a, ok
}

// Has reports whether an attribute named name exists.
func (t *AttributeTable) Has(name string) bool {
	_, ok := t.byKey[name]
	return ok
}

// Add appends a new attribute. It is an error at the caller level (not
// enforced here) to Add when Has(name) is already true; the overlay engine
// is responsible for dispatching to Add vs. replace 
func (t *AttributeTable) Add(a *Attribute) {
	if _, exists := t.byKey[a.Name]; exists {
		// Defensive: callers should have routed this through Replace.
		t.Remove(a.Name)
	}
	t.order = append(t.order, a.Name)
	t.byKey[a.Name] = a
}

// Replace implements "delete and re-add" semantics for rename: removing
// the original entry and appending the new one so ordering reflects the
// mutation.
func (t *AttributeTable) Replace(name string, a *Attribute) {
	t.Remove(name)
	t.Add(a)
}

// Remove deletes the named attribute, if present.
func (t *AttributeTable) Remove(name string) bool {
	if _, ok := t.byKey[name]; !ok {
		return false
	}
	delete(t.byKey, name)
	for i, n := range t.order {
		if n == name {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves the attribute at orgName to name, preserving its values and
// sequential position at the end (delete-then-readd), 
// Rename.
func (t *AttributeTable) Rename(orgName, name string) (*Attribute, bool) {
	a, ok := t.byKey[orgName]
	if !ok {
		return nil, false
	}
	t.Remove(orgName)
	renamed := &Attribute{Name: name, Kind: a.Kind, Values: a.Values, Container: a.Container}
	t.Add(renamed)
	return renamed, true
}

// Ordered returns the attributes in append order (after any
// Replace/Rename mutations have reordered them).
func (t *AttributeTable) Ordered() []*Attribute {
	out := make([]*Attribute, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.byKey[n])
	}
	return out
}

// Clear empties the table, used by <explicit/> to wipe metadata before
// overlay runs .
func (t *AttributeTable) Clear() {
	t.order = nil
	t.byKey = make(map[string]*Attribute)
}

// Len returns the number of attributes in the table.
func (t *AttributeTable) Len() int {
	return len(t.order)
}
