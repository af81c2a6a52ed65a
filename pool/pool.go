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

// Package pool implements the reference-counted object pool :
// strong/weak ownership for document-tree nodes and member-dataset
// handles, with a teardown path that forcibly destroys every tracked
// object to defuse reference cycles after a parse error .
package pool

import "sync"

// Refcounted is anything the pool can track: the pool's teardown pass
// calls Destroy on every tracked object.
type Refcounted interface {
	// Destroy releases any resources held by the object. It must be safe
	// to call more than once.
	Destroy()
}

// RefCounted is an embeddable strong-count tracker: Acquire increments,
// Release decrements and, at zero, invokes onZero (reuse or deallocate).
// Back-references (child->parent) must never call Acquire — 
// "a cycle must never be expressible via strong counts."
type RefCounted struct {
	mu     sync.Mutex
	count  int
	onZero func()
}

// NewRefCounted returns a tracker starting at a strong count of 1, calling
// onZero the first time the count reaches zero.
func NewRefCounted(onZero func()) *RefCounted {
	return &RefCounted{count: 1, onZero: onZero}
}

// Acquire increments the strong count.
func (r *RefCounted) Acquire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

// Release decrements the strong count and, if it reaches zero, invokes
// onZero exactly once.
func (r *RefCounted) Release() {
	r.mu.Lock()
	r.count--
	hitZero := r.count == 0
	onZero := r.onZero
	r.mu.Unlock()
	if hitZero && onZero != nil {
		onZero()
	}
}

// Count returns the current strong count, for tests and diagnostics.
func (r *RefCounted) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Pool tracks every live object it owns and, on Teardown, forcibly
// destroys all tracked objects regardless of their strong count, to
// defuse reference cycles after a parse error .
type Pool struct {
	mu      sync.Mutex
	tracked []Refcounted
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{}
}

// Track registers obj as live. It will be forcibly destroyed on Teardown
// if not already removed via Untrack.
func (p *Pool) Track(obj Refcounted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracked = append(p.tracked, obj)
}

// Untrack removes obj from the live set, e.g. once its owning document
// tree was released normally and there is no error to recover from.
func (p *Pool) Untrack(obj Refcounted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, o := range p.tracked {
		if o == obj {
			p.tracked = append(p.tracked[:i], p.tracked[i+1:]...)
			return
		}
	}
}

// Teardown forcibly destroys every object still tracked, regardless of its
// strong count. Safe to call on an empty pool.
func (p *Pool) Teardown() {
	p.mu.Lock()
	tracked := p.tracked
	p.tracked = nil
	p.mu.Unlock()

	for _, obj := range tracked {
		obj.Destroy()
	}
}

// Live returns the number of currently-tracked objects, for tests.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracked)
}

// Holder is a scoped temporary holder : acquiring on construction, releasing on Close unless
// the value has been handed over to a container via Take.
type Holder struct {
	rc     *RefCounted
	active bool
}

// Acquire constructs a Holder that has already called rc.Acquire().
func Acquire(rc *RefCounted) *Holder {
	rc.Acquire()
	return &Holder{rc: rc, active: true}
}

// Close releases the held reference if it was not already handed over via
// Take. Safe to call more than once.
func (h *Holder) Close() {
	if h.active {
		h.rc.Release()
		h.active = false
	}
}

// Take hands the held reference over to a new owner: the Holder will not
// release it on Close. This models "moving one holder into a container
// must be a handover" .
func (h *Holder) Take() *RefCounted {
	h.active = false
	return h.rc
}
