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

// Package fswin is the Windows host adapter: a cgofuse/WinFsp filesystem
// over the same fscore.Core the FUSE adapter drives. WinFsp addresses
// entries by path, so this adapter carries the path -> ino cache and
// converts every callback to (parent_ino, name) or ino before reaching the
// shared core.
package fswin

import (
	"context"

	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/winfsp/cgofuse/fuse"
)

type Filesystem struct {
	fuse.FileSystemBase

	core  *fscore.Core
	log   *logger.Logger
	paths *pathMap
}

func New(core *fscore.Core, log *logger.Logger) *Filesystem {
	if log == nil {
		log = logger.Default()
	}
	return &Filesystem{
		core:  core,
		log:   log,
		paths: newPathMap(model.RootIno),
	}
}

// Host wraps the filesystem in a cgofuse host ready to Mount.
func Host(core *fscore.Core, log *logger.Logger) *fuse.FileSystemHost {
	return fuse.NewFileSystemHost(New(core, log))
}

// resolveIno maps a WinFsp path to its inode, walking unresolved components
// through the backend and caching every prefix on the way down.
func (f *Filesystem) resolveIno(ctx context.Context, path string) (uint64, error) {
	path = normalize(path)
	if ino, ok := f.paths.lookup(path); ok {
		return ino, nil
	}

	if path == "/" {
		return model.RootIno, nil
	}

	parentPath, name := split(path)
	parent, err := f.resolveIno(ctx, parentPath)
	if err != nil {
		return 0, err
	}

	e, err := f.core.Backend().Lookup(ctx, parent, name)
	if err != nil {
		return 0, err
	}

	f.paths.store(path, e.Ino)
	return e.Ino, nil
}

func (f *Filesystem) resolveEntry(ctx context.Context, path string) (model.Entry, error) {
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return model.Entry{}, err
	}
	return f.core.Backend().GetAttr(ctx, ino)
}

// resolveParent maps path to its parent's inode plus the final component.
func (f *Filesystem) resolveParent(ctx context.Context, path string) (uint64, string, error) {
	parentPath, name := split(normalize(path))
	parent, err := f.resolveIno(ctx, parentPath)
	if err != nil {
		return 0, "", err
	}
	return parent, name, nil
}

func fillStat(e model.Entry, stat *fuse.Stat_t) {
	mode := uint32(e.Perm & 0o777)
	switch e.Kind {
	case model.KindDirectory:
		mode |= fuse.S_IFDIR
	case model.KindSymlink:
		mode |= fuse.S_IFLNK
	default:
		mode |= fuse.S_IFREG
	}

	*stat = fuse.Stat_t{
		Ino:      e.Ino,
		Mode:     mode,
		Nlink:    uint32(e.Nlinks),
		Uid:      e.UID,
		Gid:      e.GID,
		Size:     int64(e.Size),
		Atim:     fuse.NewTimespec(e.Atime),
		Mtim:     fuse.NewTimespec(e.Mtime),
		Ctim:     fuse.NewTimespec(e.Ctime),
		Birthtim: fuse.NewTimespec(e.Btime),
	}
}

func (f *Filesystem) Statfs(path string, stat *fuse.Statfs_t) int {
	total, free, err := f.core.Backend().GetSize(context.Background())
	if err != nil {
		return status(err)
	}

	const blockSize = 4096
	*stat = fuse.Statfs_t{
		Bsize:   blockSize,
		Frsize:  blockSize,
		Blocks:  total / blockSize,
		Bfree:   free / blockSize,
		Bavail:  free / blockSize,
		Namemax: 255,
	}
	return 0
}

// Getattr doubles as the security-by-name call: it is WinFsp's first touch
// of any path, so it seeds the path -> ino cache consumed by Open.
func (f *Filesystem) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	if fh != ^uint64(0) {
		if e, ok := f.core.Entry(fh); ok && e.Ino != 0 {
			fillStat(e, stat)
			return 0
		}
	}

	e, err := f.resolveEntry(context.Background(), path)
	if err != nil {
		return status(err)
	}
	fillStat(e, stat)
	return 0
}

func (f *Filesystem) Mkdir(path string, mode uint32) int {
	ctx := context.Background()
	parent, name, err := f.resolveParent(ctx, path)
	if err != nil {
		return status(err)
	}

	e, err := f.core.Backend().CreateDir(ctx, parent, name)
	if err != nil {
		return status(err)
	}
	f.paths.store(normalize(path), e.Ino)
	return 0
}

// Unlink and Rmdir arrive from WinFsp's delete disposition on cleanup; both
// route through the deferred delete-on-close machinery and purge the
// path -> ino mapping once the delete went through.
func (f *Filesystem) Unlink(path string) int {
	ctx := context.Background()
	parent, name, err := f.resolveParent(ctx, path)
	if err != nil {
		return status(err)
	}

	if err := f.deleteEntry(ctx, parent, name); err != nil {
		return status(err)
	}
	f.paths.remove(normalize(path))
	return 0
}

func (f *Filesystem) Rmdir(path string) int {
	ctx := context.Background()
	parent, name, err := f.resolveParent(ctx, path)
	if err != nil {
		return status(err)
	}

	if err := f.deleteEntry(ctx, parent, name); err != nil {
		return status(err)
	}
	f.paths.remove(normalize(path))
	return 0
}

// deleteEntry opens a handle on the entry, marks it for deletion (failing
// eagerly on a non-empty directory), and releases it so Release dispatches
// the actual backend delete. Other open handles on the same inode are
// untouched.
func (f *Filesystem) deleteEntry(ctx context.Context, parent uint64, name string) error {
	e, err := f.core.Backend().Lookup(ctx, parent, name)
	if err != nil {
		return err
	}

	res, err := f.core.Open(ctx, e.Ino, parent, name, false, false)
	if err != nil {
		return err
	}

	if err := f.core.SetDelete(ctx, res.Handle, true); err != nil {
		_ = f.core.Release(ctx, res.Handle)
		return err
	}

	return f.core.Release(ctx, res.Handle)
}

func (f *Filesystem) Rename(oldpath string, newpath string) int {
	ctx := context.Background()
	oldParent, oldName, err := f.resolveParent(ctx, oldpath)
	if err != nil {
		return status(err)
	}
	newParent, newName, err := f.resolveParent(ctx, newpath)
	if err != nil {
		return status(err)
	}

	e, err := f.core.Backend().Rename(ctx, oldParent, oldName, newParent, newName)
	if err != nil {
		return status(err)
	}

	f.paths.rename(normalize(oldpath), normalize(newpath))
	f.core.InvalidateIno(e.Ino)
	return 0
}

func (f *Filesystem) Chmod(path string, mode uint32) int {
	ctx := context.Background()
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return status(err)
	}

	perm := uint16(mode & 0o777)
	_, err = f.core.Backend().SetAttr(ctx, ino, model.SetAttrRequest{Perm: &perm})
	return status(err)
}

func (f *Filesystem) Chown(path string, uid uint32, gid uint32) int {
	ctx := context.Background()
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return status(err)
	}

	_, err = f.core.Backend().SetAttr(ctx, ino, model.SetAttrRequest{UID: &uid, GID: &gid})
	return status(err)
}

// Utimens is accepted and dropped: setattr time updates are not forwarded in
// this revision.
func (f *Filesystem) Utimens(path string, tmsp []fuse.Timespec) int {
	return 0
}

func (f *Filesystem) Create(path string, flags int, mode uint32) (int, uint64) {
	ctx := context.Background()
	parent, name, err := f.resolveParent(ctx, path)
	if err != nil {
		return status(err), ^uint64(0)
	}

	e, err := f.core.Backend().CreateFile(ctx, parent, name)
	if err != nil {
		return status(err), ^uint64(0)
	}
	f.paths.store(normalize(path), e.Ino)

	res, err := f.core.Open(ctx, e.Ino, parent, name, true, false)
	if err != nil {
		return status(err), ^uint64(0)
	}
	return 0, res.Handle
}

func (f *Filesystem) Open(path string, flags int) (int, uint64) {
	ctx := context.Background()
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return status(err), ^uint64(0)
	}

	parent, name, err := f.resolveParent(ctx, path)
	if err != nil {
		return status(err), ^uint64(0)
	}

	writable := flags&(fuse.O_WRONLY|fuse.O_RDWR) != 0
	truncate := flags&fuse.O_TRUNC != 0

	res, err := f.core.Open(ctx, ino, parent, name, writable, truncate)
	if err != nil {
		return status(err), ^uint64(0)
	}
	return 0, res.Handle
}

func (f *Filesystem) Truncate(path string, size int64, fh uint64) int {
	ctx := context.Background()
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return status(err)
	}

	sz := uint64(size)
	_, err = f.core.Backend().SetAttr(ctx, ino, model.SetAttrRequest{Size: &sz})
	return status(err)
}

func (f *Filesystem) Read(path string, buff []byte, ofst int64, fh uint64) int {
	data, err := f.core.Read(context.Background(), fh, ofst, len(buff))
	if err != nil {
		return status(err)
	}
	return copy(buff, data)
}

func (f *Filesystem) Write(path string, buff []byte, ofst int64, fh uint64) int {
	n, err := f.core.Write(context.Background(), fh, ofst, buff)
	if err != nil {
		return status(err)
	}
	return n
}

func (f *Filesystem) Flush(path string, fh uint64) int {
	return status(f.core.Flush(context.Background(), fh))
}

func (f *Filesystem) Fsync(path string, datasync bool, fh uint64) int {
	return status(f.core.Flush(context.Background(), fh))
}

// Release drains the write buffer and performs any deferred delete recorded
// on the handle.
func (f *Filesystem) Release(path string, fh uint64) int {
	err := f.core.Release(context.Background(), fh)
	return status(err)
}

func (f *Filesystem) Opendir(path string) (int, uint64) {
	ctx := context.Background()
	ino, err := f.resolveIno(ctx, path)
	if err != nil {
		return status(err), ^uint64(0)
	}
	return 0, ino
}

// Readdir serializes every entry of the listing; WinFsp applies the caller's
// glob pattern itself before the names reach the application.
func (f *Filesystem) Readdir(path string,
	fill func(name string, stat *fuse.Stat_t, ofst int64) bool,
	ofst int64,
	fh uint64) int {
	ctx := context.Background()

	ino := fh
	if ino == ^uint64(0) {
		var err error
		ino, err = f.resolveIno(ctx, path)
		if err != nil {
			return status(err)
		}
	}

	listing, err := f.core.Backend().ListDir(ctx, ino)
	if err != nil {
		return status(err)
	}

	base := normalize(path)
	for _, e := range listing {
		var stat fuse.Stat_t
		fillStat(e, &stat)

		childPath := base + "/" + e.Name
		if base == "/" {
			childPath = "/" + e.Name
		}
		f.paths.store(childPath, e.Ino)

		if !fill(e.Name, &stat, 0) {
			break
		}
	}
	return 0
}

func (f *Filesystem) Releasedir(path string, fh uint64) int {
	return 0
}

// Link, Symlink and Readlink stay unimplemented at the adapter level; the
// backend exposes them for future use.
func (f *Filesystem) Link(oldpath string, newpath string) int {
	return -fuse.ENOSYS
}

func (f *Filesystem) Symlink(target string, newpath string) int {
	return -fuse.ENOSYS
}

func (f *Filesystem) Readlink(path string) (int, string) {
	return -fuse.ENOSYS, ""
}
