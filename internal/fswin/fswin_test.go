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

//go:build windows

package fswin

import (
	"context"
	"testing"
	"time"

	"github.com/matteo027/remote-file-system/internal/backend/fake"
	"github.com/matteo027/remote-file-system/internal/cache"
	"github.com/matteo027/remote-file-system/internal/clock"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"
)

const noHandle = ^uint64(0)

func newTestFS(t *testing.T) (*Filesystem, *fake.Backend) {
	t.Helper()
	b := fake.New(clock.NewFakeClock(time.Unix(1000, 0)))
	core := fscore.New(cache.New(b, cache.DefaultConfig(), nil), fscore.DefaultConfig(), nil)
	return New(core, nil), b
}

func TestGetattrSeedsPathCache(t *testing.T) {
	fs, b := newTestFS(t)

	e, err := b.WriteFileData(model.RootIno, "f.txt", []byte("abc"))
	require.NoError(t, err)

	var stat fuse.Stat_t
	require.Zero(t, fs.Getattr("/f.txt", &stat, noHandle))
	assert.Equal(t, e.Ino, stat.Ino)
	assert.Equal(t, int64(3), stat.Size)

	ino, ok := fs.paths.lookup("/f.txt")
	require.True(t, ok)
	assert.Equal(t, e.Ino, ino)
}

func TestOpenReadRelease(t *testing.T) {
	fs, b := newTestFS(t)

	_, err := b.WriteFileData(model.RootIno, "f", []byte("content"))
	require.NoError(t, err)

	errc, fh := fs.Open("/f", fuse.O_RDONLY)
	require.Zero(t, errc)

	buff := make([]byte, 7)
	n := fs.Read("/f", buff, 0, fh)
	require.Equal(t, 7, n)
	assert.Equal(t, []byte("content"), buff)

	require.Zero(t, fs.Release("/f", fh))
}

func TestUnlinkDispatchesDeferredDelete(t *testing.T) {
	fs, b := newTestFS(t)

	e, err := b.WriteFileData(model.RootIno, "doomed", []byte("x"))
	require.NoError(t, err)

	var stat fuse.Stat_t
	require.Zero(t, fs.Getattr("/doomed", &stat, noHandle))

	require.Zero(t, fs.Unlink("/doomed"))
	assert.Equal(t, 1, b.CallCount("delete_file"))

	_, ok := b.Entry(e.Ino)
	assert.False(t, ok)
	_, ok = fs.paths.lookup("/doomed")
	assert.False(t, ok, "path mapping purged after delete")
}

func TestRmdirNonEmptyFailsEagerly(t *testing.T) {
	fs, b := newTestFS(t)

	ctx := context.Background()
	dir, err := b.CreateDir(ctx, model.RootIno, "d")
	require.NoError(t, err)
	_, err = b.WriteFileData(dir.Ino, "child", nil)
	require.NoError(t, err)

	assert.Equal(t, -fuse.ENOTEMPTY, fs.Rmdir("/d"))
	assert.Equal(t, 0, b.CallCount("delete_dir"))
	_, ok := b.Entry(dir.Ino)
	assert.True(t, ok)
}

func TestRmdirEmptySucceeds(t *testing.T) {
	fs, b := newTestFS(t)

	ctx := context.Background()
	dir, err := b.CreateDir(ctx, model.RootIno, "d")
	require.NoError(t, err)

	require.Zero(t, fs.Rmdir("/d"))
	assert.Equal(t, 1, b.CallCount("delete_dir"))
	_, ok := b.Entry(dir.Ino)
	assert.False(t, ok)
}

func TestRenameReanchorsDescendantPaths(t *testing.T) {
	fs, b := newTestFS(t)

	ctx := context.Background()
	dir, err := b.CreateDir(ctx, model.RootIno, "old")
	require.NoError(t, err)
	child, err := b.WriteFileData(dir.Ino, "f", []byte("x"))
	require.NoError(t, err)

	var stat fuse.Stat_t
	require.Zero(t, fs.Getattr("/old/f", &stat, noHandle))

	require.Zero(t, fs.Rename("/old", "/new"))

	ino, ok := fs.paths.lookup("/new/f")
	require.True(t, ok, "descendant mapping moved under the new prefix")
	assert.Equal(t, child.Ino, ino)
	_, ok = fs.paths.lookup("/old/f")
	assert.False(t, ok)
	_, ok = fs.paths.lookup("/old")
	assert.False(t, ok)
}
