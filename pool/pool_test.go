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

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeNode struct {
	destroyed int
}

func (f *fakeNode) Destroy() { f.destroyed++ }

func TestRefCountedAcquireRelease(t *testing.T) {
	zeroed := false
	rc := NewRefCounted(func() { zeroed = true })
	rc.Acquire()
	assert.Equal(t, 2, rc.Count())
	rc.Release()
	assert.False(t, zeroed)
	rc.Release()
	assert.True(t, zeroed)
}

func TestPoolTeardownForciblyDestroysAll(t *testing.T) {
	p := New()
	a := &fakeNode{}
	b := &fakeNode{}
	p.Track(a)
	p.Track(b)
	assert.Equal(t, 2, p.Live())

	p.Teardown()
	assert.Equal(t, 1, a.destroyed)
	assert.Equal(t, 1, b.destroyed)
	assert.Equal(t, 0, p.Live())
}

func TestPoolUntrack(t *testing.T) {
	p := New()
	a := &fakeNode{}
	p.Track(a)
	p.Untrack(a)
	p.Teardown()
	assert.Equal(t, 0, a.destroyed)
}

func TestHolderHandover(t *testing.T) {
	released := false
	rc := NewRefCounted(func() { released = true })
	h := Acquire(rc)
	assert.Equal(t, 2, rc.Count())

	taken := h.Take()
	h.Close() // should be a no-op now, handed over
	assert.Equal(t, 2, rc.Count())
	assert.Same(t, rc, taken)

	rc.Release()
	rc.Release()
	assert.True(t, released)
}

func TestHolderCloseWithoutTake(t *testing.T) {
	released := false
	rc := NewRefCounted(func() { released = true })
	h := Acquire(rc)
	h.Close()
	rc.Release()
	assert.True(t, released)
}
