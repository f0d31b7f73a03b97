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

// Package fsfuse is the Linux/macOS host adapter: it implements
// fuseutil.FileSystem over jacobsa/fuse and translates each kernel callback
// into fscore.Core calls. The kernel already speaks inode numbers, so the
// identity concern here is the identity function; the path-keyed variant
// lives in internal/fswin.
package fsfuse

import (
	"context"
	"os"
	"syscall"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/model"
)

// fileSystem routes kernel ops to the platform-agnostic adapter core. File
// handles live in the core's table; directory handles are adapter-local.
type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	core *fscore.Core
	log  *logger.Logger

	dirs *dirHandleTable
}

// New builds the fuseutil.FileSystem served at the mount point.
func New(core *fscore.Core, log *logger.Logger) fuseutil.FileSystem {
	if log == nil {
		log = logger.Default()
	}
	return &fileSystem{
		core: core,
		log:  log,
		dirs: newDirHandleTable(),
	}
}

func attributes(e model.Entry) fuseops.InodeAttributes {
	mode := os.FileMode(e.Perm & 0o777)
	switch e.Kind {
	case model.KindDirectory:
		mode |= os.ModeDir
	case model.KindSymlink:
		mode |= os.ModeSymlink
	}

	return fuseops.InodeAttributes{
		Size:   e.Size,
		Nlink:  e.Nlinks,
		Mode:   mode,
		Atime:  e.Atime,
		Mtime:  e.Mtime,
		Ctime:  e.Ctime,
		Crtime: e.Btime,
		Uid:    e.UID,
		Gid:    e.GID,
	}
}

// childEntry fills a ChildInodeEntry with zero expirations: the kernel asks
// again every time, and the cache layer answers cheaply. Letting the kernel
// cache attributes would undercut close-to-open consistency.
func childEntry(e model.Entry) fuseops.ChildInodeEntry {
	return fuseops.ChildInodeEntry{
		Child:      fuseops.InodeID(e.Ino),
		Attributes: attributes(e),
	}
}

func (fs *fileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	total, free, err := fs.core.Backend().GetSize(ctx)
	if err != nil {
		return errno(err)
	}

	const blockSize = 4096
	op.BlockSize = blockSize
	op.Blocks = total / blockSize
	op.BlocksFree = free / blockSize
	op.BlocksAvailable = op.BlocksFree
	op.IoSize = 1 << 16
	return nil
}

func (fs *fileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	e, err := fs.core.Backend().Lookup(ctx, uint64(op.Parent), op.Name)
	if err != nil {
		return errno(err)
	}
	op.Entry = childEntry(e)
	return nil
}

func (fs *fileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	e, err := fs.core.Backend().GetAttr(ctx, uint64(op.Inode))
	if err != nil {
		return errno(err)
	}
	op.Attributes = attributes(e)
	return nil
}

// SetInodeAttributes forwards mode (low 9 bits only) and size. Atime/Mtime
// updates are dropped; see the known limitation recorded in DESIGN.md.
func (fs *fileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	var req model.SetAttrRequest

	if op.Mode != nil {
		perm := uint16(op.Mode.Perm())
		req.Perm = &perm
	}
	if op.Size != nil {
		req.Size = op.Size
	}

	e, err := fs.core.Backend().SetAttr(ctx, uint64(op.Inode), req)
	if err != nil {
		return errno(err)
	}
	op.Attributes = attributes(e)
	return nil
}

func (fs *fileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	// Inode identity is owned by the server; there is no local lookup count to
	// decrement.
	return nil
}

func (fs *fileSystem) BatchForget(ctx context.Context, op *fuseops.BatchForgetOp) error {
	return nil
}

func (fs *fileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	e, err := fs.core.Backend().CreateDir(ctx, uint64(op.Parent), op.Name)
	if err != nil {
		return errno(err)
	}
	op.Entry = childEntry(e)
	return nil
}

func (fs *fileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	e, err := fs.core.Backend().CreateFile(ctx, uint64(op.Parent), op.Name)
	if err != nil {
		return errno(err)
	}

	res, err := fs.core.Open(ctx, e.Ino, uint64(op.Parent), op.Name, true, false)
	if err != nil {
		return errno(err)
	}

	op.Entry = childEntry(res.Entry)
	op.Handle = fuseops.HandleID(res.Handle)
	return nil
}

func (fs *fileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) error {
	e, err := fs.core.Backend().Rename(ctx, uint64(op.OldParent), op.OldName, uint64(op.NewParent), op.NewName)
	if err != nil {
		return errno(err)
	}
	fs.core.InvalidateIno(e.Ino)
	return nil
}

func (fs *fileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	return errno(fs.deleteEntry(ctx, uint64(op.Parent), op.Name))
}

func (fs *fileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	return errno(fs.deleteEntry(ctx, uint64(op.Parent), op.Name))
}

// deleteEntry routes unlink/rmdir through the deferred delete-on-close
// machinery: open a handle on the entry, mark it for deletion (which fails
// eagerly on a non-empty directory), and release it, letting Release
// dispatch the actual backend delete. Other open handles on the same inode
// are untouched.
func (fs *fileSystem) deleteEntry(ctx context.Context, parent uint64, name string) error {
	e, err := fs.core.Backend().Lookup(ctx, parent, name)
	if err != nil {
		return err
	}

	res, err := fs.core.Open(ctx, e.Ino, parent, name, false, false)
	if err != nil {
		return err
	}

	if err := fs.core.SetDelete(ctx, res.Handle, true); err != nil {
		_ = fs.core.Release(ctx, res.Handle)
		return err
	}

	return fs.core.Release(ctx, res.Handle)
}

func (fs *fileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	op.Handle = fuseops.HandleID(fs.dirs.open(uint64(op.Inode)))
	return nil
}

func (fs *fileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	dh, ok := fs.dirs.get(uint64(op.Handle))
	if !ok {
		return syscall.EBADF
	}

	dh.mu.Lock()
	defer dh.mu.Unlock()

	// Offset 0 means the directory stream was (re)wound: fetch a fresh
	// listing through the cache. Nonzero offsets resume the snapshot taken
	// then, per the kernel's cookie protocol.
	if op.Offset == 0 {
		if err := dh.fetch(ctx, fs.core.Backend()); err != nil {
			return errno(err)
		}
	}

	if int(op.Offset) > len(dh.entries) {
		return syscall.EINVAL
	}

	for _, d := range dh.entries[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}

	return nil
}

func (fs *fileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.dirs.release(uint64(op.Handle))
	return nil
}

func (fs *fileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	// O_TRUNC is not handled here: without atomic-O_TRUNC support the kernel
	// truncates via SetInodeAttributes before sending the open.
	writable := uint32(op.OpenFlags)&uint32(syscall.O_ACCMODE) != uint32(syscall.O_RDONLY)

	res, err := fs.core.Open(ctx, uint64(op.Inode), 0, "", writable, false)
	if err != nil {
		return errno(err)
	}

	op.Handle = fuseops.HandleID(res.Handle)

	// Per-handle flags: large files bypass the page cache and
	// stream; small read-only handles may keep the page cache because the
	// next open revalidates; writable handles go direct so writes reach the
	// write buffer unmerged.
	switch {
	case res.Large:
		op.UseDirectIO = true
	case writable:
		op.UseDirectIO = true
	default:
		op.KeepPageCache = true
	}

	return nil
}

func (fs *fileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	data, err := fs.core.Read(ctx, uint64(op.Handle), op.Offset, int(op.Size))
	if err != nil {
		return errno(err)
	}
	op.BytesRead = copy(op.Dst, data)
	return nil
}

func (fs *fileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	_, err := fs.core.Write(ctx, uint64(op.Handle), op.Offset, op.Data)
	return errno(err)
}

func (fs *fileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	return errno(fs.core.Flush(ctx, uint64(op.Handle)))
}

func (fs *fileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	return errno(fs.core.Flush(ctx, uint64(op.Handle)))
}

func (fs *fileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	return errno(fs.core.Release(ctx, uint64(op.Handle)))
}

func (fs *fileSystem) SyncFS(ctx context.Context, op *fuseops.SyncFSOp) error {
	return nil
}

func (fs *fileSystem) Destroy() {
	fs.log.Infof("filesystem destroyed, unmount complete")
}
