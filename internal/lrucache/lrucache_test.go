// Copyright 2025 the remote-file-system authors.
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

package lrucache_test

import (
	"testing"

	"github.com/matteo027/remote-file-system/internal/lrucache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sized int

func (s sized) Size() uint64 { return uint64(s) }

// invariantsCache wraps a Cache and checks invariants before and after
// every mutating call.
type invariantsCache[K comparable, V lrucache.Sized] struct {
	c *lrucache.Cache[K, V]
}

func wrap[K comparable, V lrucache.Sized](c *lrucache.Cache[K, V]) *invariantsCache[K, V] {
	return &invariantsCache[K, V]{c: c}
}

func (w *invariantsCache[K, V]) Insert(k K, v V) []V {
	w.c.CheckInvariants()
	defer w.c.CheckInvariants()
	return w.c.Insert(k, v)
}

func (w *invariantsCache[K, V]) LookUp(k K) (V, bool) {
	w.c.CheckInvariants()
	defer w.c.CheckInvariants()
	return w.c.LookUp(k)
}

func (w *invariantsCache[K, V]) Erase(k K) (V, bool) {
	w.c.CheckInvariants()
	defer w.c.CheckInvariants()
	return w.c.Erase(k)
}

func TestInsertAndLookUp(t *testing.T) {
	c := wrap(lrucache.New[string, sized](50))

	c.Insert("a", sized(10))
	v, ok := c.LookUp("a")
	require.True(t, ok)
	assert.EqualValues(t, 10, v)

	_, ok = c.LookUp("missing")
	assert.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := wrap(lrucache.New[string, sized](10))

	c.Insert("a", sized(5))
	c.Insert("b", sized(5))
	// Touch a so b becomes the LRU entry.
	c.LookUp("a")

	evicted := c.Insert("c", sized(5))
	require.Len(t, evicted, 1)
	assert.EqualValues(t, 5, evicted[0])

	_, ok := c.LookUp("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.LookUp("a")
	assert.True(t, ok, "a was touched more recently and should survive")
}

func TestEraseRemovesEntry(t *testing.T) {
	c := wrap(lrucache.New[string, sized](50))
	c.Insert("a", sized(10))

	v, ok := c.Erase("a")
	require.True(t, ok)
	assert.EqualValues(t, 10, v)

	_, ok = c.LookUp("a")
	assert.False(t, ok)
}

func TestReinsertReplacesAndReportsOldValue(t *testing.T) {
	c := wrap(lrucache.New[string, sized](50))
	c.Insert("a", sized(10))

	evicted := c.Insert("a", sized(20))
	require.Len(t, evicted, 1)
	assert.EqualValues(t, 10, evicted[0])

	v, _ := c.LookUp("a")
	assert.EqualValues(t, 20, v)
}

func TestZeroCapacityIsUnbounded(t *testing.T) {
	c := wrap(lrucache.New[string, sized](0))
	for i := 0; i < 1000; i++ {
		c.Insert(string(rune(i)), sized(1000))
	}
	assert.Equal(t, 1000, c.c.Len())
}
