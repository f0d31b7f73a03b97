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

//go:build !windows

package fsfuse

import (
	"context"
	"sync"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/matteo027/remote-file-system/internal/backend"
	"github.com/matteo027/remote-file-system/internal/model"
)

// dirHandle is one open directory stream: the inode being listed and the
// dirent snapshot taken the last time the stream was at offset zero.
type dirHandle struct {
	mu  sync.Mutex
	ino uint64

	entries []fuseutil.Dirent
}

// fetch rebuilds the dirent snapshot from a listing served by the cache.
// The kernel's "." and ".." cookies come first, so the child at listing
// index i resumes at cookie 3+i.
func (dh *dirHandle) fetch(ctx context.Context, b backend.RemoteBackend) error {
	listing, err := b.ListDir(ctx, dh.ino)
	if err != nil {
		return err
	}

	entries := make([]fuseutil.Dirent, 0, len(listing)+2)
	entries = append(entries,
		fuseutil.Dirent{Offset: 1, Inode: fuseops.InodeID(dh.ino), Name: ".", Type: fuseutil.DT_Directory},
		fuseutil.Dirent{Offset: 2, Inode: fuseops.InodeID(dh.ino), Name: "..", Type: fuseutil.DT_Directory},
	)

	for i, e := range listing {
		entries = append(entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(3 + i),
			Inode:  fuseops.InodeID(e.Ino),
			Name:   e.Name,
			Type:   direntType(e.Kind),
		})
	}

	dh.entries = entries
	return nil
}

func direntType(k model.Kind) fuseutil.DirentType {
	switch k {
	case model.KindDirectory:
		return fuseutil.DT_Directory
	case model.KindSymlink:
		return fuseutil.DT_Link
	default:
		return fuseutil.DT_File
	}
}

// dirHandleTable allocates directory handles. It is separate from the file
// handle table in fscore: the two op families never share a handle, and
// directory streams carry none of the file-handle state (read mode, write
// buffer).
type dirHandleTable struct {
	mu      sync.Mutex
	next    uint64
	handles map[uint64]*dirHandle
}

func newDirHandleTable() *dirHandleTable {
	return &dirHandleTable{next: 1, handles: make(map[uint64]*dirHandle)}
}

func (t *dirHandleTable) open(ino uint64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.handles[h] = &dirHandle{ino: ino}
	return h
}

func (t *dirHandleTable) get(h uint64) (*dirHandle, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	dh, ok := t.handles[h]
	return dh, ok
}

func (t *dirHandleTable) release(h uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.handles, h)
}
