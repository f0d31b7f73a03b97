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
	"syscall"
	"testing"
	"time"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/matteo027/remote-file-system/internal/backend/fake"
	"github.com/matteo027/remote-file-system/internal/cache"
	"github.com/matteo027/remote-file-system/internal/clock"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFS builds the full client pipeline below the adapter: fake backend,
// cache layer, adapter core.
func newTestFS(t *testing.T) (*fileSystem, *fake.Backend) {
	t.Helper()
	b := fake.New(clock.NewFakeClock(time.Unix(1000, 0)))
	core := fscore.New(cache.New(b, cache.DefaultConfig(), nil), fscore.DefaultConfig(), nil)
	return New(core, nil).(*fileSystem), b
}

func TestCreateWriteFlushThroughOps(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	createOp := &fuseops.CreateFileOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "a.txt",
	}
	require.NoError(t, fs.CreateFile(ctx, createOp))
	require.NotZero(t, createOp.Handle)

	writeOp := &fuseops.WriteFileOp{
		Inode:  createOp.Entry.Child,
		Handle: createOp.Handle,
		Offset: 0,
		Data:   []byte("hello world"),
	}
	require.NoError(t, fs.WriteFile(ctx, writeOp))
	assert.Equal(t, 0, b.CallCount("write_chunk"))

	flushOp := &fuseops.FlushFileOp{Inode: createOp.Entry.Child, Handle: createOp.Handle}
	require.NoError(t, fs.FlushFile(ctx, flushOp))
	assert.Equal(t, 1, b.CallCount("write_chunk"))

	require.NoError(t, fs.ReleaseFileHandle(ctx, &fuseops.ReleaseFileHandleOp{Handle: createOp.Handle}))

	openOp := &fuseops.OpenFileOp{Inode: createOp.Entry.Child}
	require.NoError(t, fs.OpenFile(ctx, openOp))

	readOp := &fuseops.ReadFileOp{
		Inode:  createOp.Entry.Child,
		Handle: openOp.Handle,
		Offset: 0,
		Size:   11,
		Dst:    make([]byte, 11),
	}
	require.NoError(t, fs.ReadFile(ctx, readOp))
	assert.Equal(t, []byte("hello world"), readOp.Dst[:readOp.BytesRead])

	require.NoError(t, fs.ReleaseFileHandle(ctx, &fuseops.ReleaseFileHandleOp{Handle: openOp.Handle}))
}

func TestUnlinkDispatchesDeferredDelete(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	e, err := b.WriteFileData(model.RootIno, "doomed", []byte("x"))
	require.NoError(t, err)

	err = fs.Unlink(ctx, &fuseops.UnlinkOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "doomed",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, b.CallCount("delete_file"))
	_, ok := b.Entry(e.Ino)
	assert.False(t, ok)
}

func TestRmDirNonEmptyFailsEagerly(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	dir, err := b.CreateDir(ctx, model.RootIno, "d")
	require.NoError(t, err)
	_, err = b.WriteFileData(dir.Ino, "child", nil)
	require.NoError(t, err)

	err = fs.RmDir(ctx, &fuseops.RmDirOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "d",
	})
	assert.Equal(t, syscall.ENOTEMPTY, err)

	// The eager check fired client-side: no delete ever reached the backend.
	assert.Equal(t, 0, b.CallCount("delete_dir"))
	_, ok := b.Entry(dir.Ino)
	assert.True(t, ok)
}

func TestRmDirEmptySucceeds(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	dir, err := b.CreateDir(ctx, model.RootIno, "d")
	require.NoError(t, err)

	err = fs.RmDir(ctx, &fuseops.RmDirOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "d",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, b.CallCount("delete_dir"))
	_, ok := b.Entry(dir.Ino)
	assert.False(t, ok)
}

func TestUnlinkLeavesOtherHandlesIntact(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	createOp := &fuseops.CreateFileOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "f",
	}
	require.NoError(t, fs.CreateFile(ctx, createOp))

	writeOp := &fuseops.WriteFileOp{
		Inode:  createOp.Entry.Child,
		Handle: createOp.Handle,
		Data:   []byte("buffered"),
	}
	require.NoError(t, fs.WriteFile(ctx, writeOp))

	// Another caller unlinks the file while our handle is still open.
	require.NoError(t, fs.Unlink(ctx, &fuseops.UnlinkOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "f",
	}))
	assert.Equal(t, 1, b.CallCount("delete_file"))

	// The open handle is untouched: its snapshot survives and further writes
	// keep landing in its buffer.
	fsImpl := fs.core
	snap, ok := fsImpl.Entry(uint64(createOp.Handle))
	require.True(t, ok)
	assert.Equal(t, uint64(createOp.Entry.Child), snap.Ino)

	writeOp2 := &fuseops.WriteFileOp{
		Inode:  createOp.Entry.Child,
		Handle: createOp.Handle,
		Offset: 8,
		Data:   []byte(" more"),
	}
	require.NoError(t, fs.WriteFile(ctx, writeOp2))

	// Flushing surfaces the server-side deletion; the handle itself still
	// tears down cleanly afterwards.
	err := fs.FlushFile(ctx, &fuseops.FlushFileOp{Inode: createOp.Entry.Child, Handle: createOp.Handle})
	assert.Equal(t, syscall.ENOENT, err)
	require.NoError(t, fs.ReleaseFileHandle(ctx, &fuseops.ReleaseFileHandleOp{Handle: createOp.Handle}))
}

func TestRenameThroughOps(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	e, err := b.WriteFileData(model.RootIno, "old.txt", []byte("x"))
	require.NoError(t, err)

	sub, err := b.CreateDir(ctx, model.RootIno, "sub")
	require.NoError(t, err)

	err = fs.Rename(ctx, &fuseops.RenameOp{
		OldParent: fuseops.InodeID(model.RootIno),
		OldName:   "old.txt",
		NewParent: fuseops.InodeID(sub.Ino),
		NewName:   "new.txt",
	})
	require.NoError(t, err)

	lookupOld := &fuseops.LookUpInodeOp{
		Parent: fuseops.InodeID(model.RootIno),
		Name:   "old.txt",
	}
	assert.Equal(t, syscall.ENOENT, fs.LookUpInode(ctx, lookupOld))

	lookupNew := &fuseops.LookUpInodeOp{
		Parent: fuseops.InodeID(sub.Ino),
		Name:   "new.txt",
	}
	require.NoError(t, fs.LookUpInode(ctx, lookupNew))
	assert.Equal(t, fuseops.InodeID(e.Ino), lookupNew.Entry.Child)
}

func TestGetInodeAttributesThroughOps(t *testing.T) {
	ctx := context.Background()
	fs, b := newTestFS(t)

	e, err := b.WriteFileData(model.RootIno, "f", []byte("12345"))
	require.NoError(t, err)

	op := &fuseops.GetInodeAttributesOp{Inode: fuseops.InodeID(e.Ino)}
	require.NoError(t, fs.GetInodeAttributes(ctx, op))
	assert.Equal(t, uint64(5), op.Attributes.Size)
	assert.True(t, op.Attributes.Mode.IsRegular())
}
