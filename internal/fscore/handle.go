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

package fscore

import (
	"sync"

	"github.com/jacobsa/syncutil"
	"github.com/matteo027/remote-file-system/internal/model"
)

// firstHandleID is the first file-handle number handed out; 0-2 stay
// reserved, mirroring stdin/stdout/stderr.
const firstHandleID uint64 = 3

// handle is the per-open-file state the adapter core owns: an entry
// snapshot, the chosen read mode and its associated state, a write buffer
// for writable handles, and the bits needed to perform a deferred delete on
// close.
type handle struct {
	mu sync.Mutex

	ino      uint64
	parent   uint64
	name     string
	entry    model.Entry
	writable bool

	mode  readMode
	small struct{} // SmallPages carries no extra state; reads delegate straight to the cache
	large *largeStream

	writes *writeBuffer

	deleteOnClose bool
}

// handleTable is the monotonically-increasing fh -> handle map. It is kept
// behind its own mutex, distinct from any per-handle lock; the lock order
// is handle table -> per-handle state, and no backend call runs under the
// table lock.
type handleTable struct {
	mu      syncutil.InvariantMutex
	next    uint64
	entries map[uint64]*handle
}

func newHandleTable() *handleTable {
	t := &handleTable{next: firstHandleID, entries: make(map[uint64]*handle)}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// checkInvariants panics if the next-handle counter has been allowed to fall
// behind a still-open handle, which would eventually hand out a fh that
// collides with one already in use.
func (t *handleTable) checkInvariants() {
	for fh := range t.entries {
		if fh >= t.next {
			panic("fscore: open handle id exceeds the next-handle counter")
		}
	}
}

func (t *handleTable) allocate(h *handle) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	fh := t.next
	t.next++
	t.entries[fh] = h
	return fh
}

func (t *handleTable) get(fh uint64) (*handle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.entries[fh]
	return h, ok
}

func (t *handleTable) remove(fh uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, fh)
}

// forEach visits every open handle. The table lock is held for the duration,
// so f must not call back into the table or into the backend.
func (t *handleTable) forEach(f func(fh uint64, h *handle)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for fh, h := range t.entries {
		f(fh, h)
	}
}
