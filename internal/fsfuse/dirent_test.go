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
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/matteo027/remote-file-system/internal/backend/fake"
	"github.com/matteo027/remote-file-system/internal/clock"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirHandleFetchPrependsDotCookies(t *testing.T) {
	ctx := context.Background()
	b := fake.New(clock.NewFakeClock(time.Unix(1000, 0)))

	fileEntry, err := b.WriteFileData(model.RootIno, "a.txt", []byte("x"))
	require.NoError(t, err)
	dirEntry, err := b.CreateDir(ctx, model.RootIno, "sub")
	require.NoError(t, err)

	dh := &dirHandle{ino: model.RootIno}
	require.NoError(t, dh.fetch(ctx, b))

	require.Len(t, dh.entries, 4)
	assert.Equal(t, ".", dh.entries[0].Name)
	assert.Equal(t, "..", dh.entries[1].Name)
	assert.Equal(t, fuseops.DirOffset(1), dh.entries[0].Offset)
	assert.Equal(t, fuseops.DirOffset(2), dh.entries[1].Offset)

	// Children resume at cookie 3+index.
	assert.Equal(t, "a.txt", dh.entries[2].Name)
	assert.Equal(t, fuseops.DirOffset(3), dh.entries[2].Offset)
	assert.Equal(t, fuseops.InodeID(fileEntry.Ino), dh.entries[2].Inode)
	assert.Equal(t, fuseutil.DT_File, dh.entries[2].Type)

	assert.Equal(t, "sub", dh.entries[3].Name)
	assert.Equal(t, fuseops.DirOffset(4), dh.entries[3].Offset)
	assert.Equal(t, fuseops.InodeID(dirEntry.Ino), dh.entries[3].Inode)
	assert.Equal(t, fuseutil.DT_Directory, dh.entries[3].Type)
}

func TestErrnoMapping(t *testing.T) {
	cases := []struct {
		err  error
		want syscall.Errno
	}{
		{model.NotFound("/x"), syscall.ENOENT},
		{model.Unauthorized(), syscall.EPERM},
		{model.Forbidden(), syscall.EACCES},
		{model.Conflict("dup"), syscall.EEXIST},
		{model.BadAnswerFormat("bad json"), syscall.EPROTO},
		{model.InternalServerError(), syscall.EIO},
		{model.ServerUnreachable(), syscall.EHOSTUNREACH},
		{model.Other("weird"), syscall.EIO},
		{fscore.ErrNotSequential, syscall.ESPIPE},
		{fscore.ErrNotSupported, syscall.ENOSYS},
		{fscore.ErrDirectoryNotEmpty, syscall.ENOTEMPTY},
		{fscore.ErrUnknownHandle, syscall.EBADF},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, errno(tc.err), "mapping %v", tc.err)
	}
	assert.NoError(t, errno(nil))
}

func TestAttributesConversion(t *testing.T) {
	e := model.Entry{
		Ino:    9,
		Kind:   model.KindDirectory,
		Size:   0,
		Perm:   0o755,
		UID:    1000,
		GID:    1000,
		Nlinks: 2,
	}

	attrs := attributes(e)
	assert.True(t, attrs.Mode.IsDir())
	assert.Equal(t, uint32(2), attrs.Nlink)
	assert.Equal(t, uint32(1000), attrs.Uid)

	e.Kind = model.KindFile
	e.Size = 123
	attrs = attributes(e)
	assert.True(t, attrs.Mode.IsRegular())
	assert.Equal(t, uint64(123), attrs.Size)
}
