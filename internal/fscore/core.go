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

// Package fscore holds the filesystem adapter logic shared by every host
// binding: open-file-table and read-mode bookkeeping, the small-vs-large
// read strategy, write buffering/coalescing, and deferred delete-on-close.
// It is platform-agnostic: internal/fsfuse (Linux/macOS, jacobsa/fuse) and
// internal/fswin (Windows, cgofuse) both drive a Core and translate their
// own identity concern (inode vs path) before calling into it.
package fscore

import (
	"bytes"
	"context"

	"github.com/matteo027/remote-file-system/internal/backend"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/model"
)

// Core is the FS Adapter's platform-agnostic engine. It talks to the world
// exclusively through a backend.RemoteBackend, ordinarily a *cache.Layer.
type Core struct {
	backend backend.RemoteBackend
	cfg     Config
	log     *logger.Logger

	handles *handleTable
}

func New(b backend.RemoteBackend, cfg Config, log *logger.Logger) *Core {
	if log == nil {
		log = logger.Default()
	}
	return &Core{backend: b, cfg: cfg, log: log, handles: newHandleTable()}
}

// OpenResult reports what Open decided so the platform adapter can
// advertise the right per-handle flags to the kernel.
type OpenResult struct {
	Handle uint64
	Entry  model.Entry
	Large  bool
}

// Open fetches current attributes, honors O_TRUNC, allocates a handle,
// picks SmallPages or LargeStream by size, and sets up a write buffer for
// writable handles.
func (c *Core) Open(ctx context.Context, ino, parent uint64, name string, writable, truncate bool) (OpenResult, error) {
	entry, err := c.backend.GetAttr(ctx, ino)
	if err != nil {
		return OpenResult{}, err
	}

	if truncate {
		zero := uint64(0)
		entry, err = c.backend.SetAttr(ctx, ino, model.SetAttrRequest{Size: &zero})
		if err != nil {
			return OpenResult{}, err
		}
	}

	h := &handle{
		ino:      ino,
		parent:   parent,
		name:     name,
		entry:    entry,
		writable: writable,
	}

	large := entry.Size > c.cfg.LargeFileThreshold
	if large {
		h.mode = modeLargeStream
		h.large = &largeStream{}
	} else {
		h.mode = modeSmallPages
	}

	if writable {
		h.writes = newWriteBuffer()
	}

	fh := c.handles.allocate(h)
	c.log.Tracef("open ino=%d fh=%d size=%d large=%v writable=%v", ino, fh, entry.Size, large, writable)

	return OpenResult{Handle: fh, Entry: entry, Large: large}, nil
}

func (c *Core) lookup(fh uint64) (*handle, error) {
	h, ok := c.handles.get(fh)
	if !ok {
		return nil, ErrUnknownHandle
	}
	return h, nil
}

// Read serves a read through the handle's chosen strategy.
func (c *Core) Read(ctx context.Context, fh uint64, offset int64, size int) ([]byte, error) {
	h, err := c.lookup(fh)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.mode {
	case modeLargeStream:
		return c.readLarge(ctx, h, offset, size)
	default:
		return c.readSmall(ctx, h, offset, size)
	}
}

func (c *Core) readSmall(ctx context.Context, h *handle, offset int64, size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	data, err := c.backend.ReadChunk(ctx, h.ino, uint64(offset), uint64(size))
	if err != nil {
		return nil, err
	}
	if len(data) > size {
		data = data[:size]
	}
	return data, nil
}

func (c *Core) readLarge(ctx context.Context, h *handle, offset int64, size int) ([]byte, error) {
	ls := h.large
	if uint64(offset) != ls.pos {
		return nil, ErrNotSequential
	}
	if size <= 0 {
		return nil, nil
	}

	if err := ls.fill(ctx, c.backend, h.ino, size); err != nil {
		return nil, err
	}

	return ls.drain(size), nil
}

// Write buffers a fragment for later coalescing and reports the full length
// written immediately.
func (c *Core) Write(ctx context.Context, fh uint64, offset int64, data []byte) (int, error) {
	h, err := c.lookup(fh)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.writable || h.writes == nil {
		return 0, ErrNotSupported
	}

	return h.writes.insert(uint64(offset), data), nil
}

// Flush drains the write buffer, coalescing adjacent fragments into runs and
// dispatching each run through WriteChunk or WriteStream depending on its
// size. An empty buffer is a no-op: no backend call is made.
func (c *Core) Flush(ctx context.Context, fh uint64) error {
	h, err := c.lookup(fh)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return c.flushLocked(ctx, h)
}

func (c *Core) flushLocked(ctx context.Context, h *handle) error {
	if h.writes == nil || h.writes.empty() {
		return nil
	}

	for _, r := range h.writes.drain() {
		if err := c.writeRun(ctx, h.ino, r); err != nil {
			return err
		}
	}

	return nil
}

func (c *Core) writeRun(ctx context.Context, ino uint64, r run) error {
	if uint64(len(r.data)) > c.cfg.LargeFileThreshold {
		return c.backend.WriteStream(ctx, ino, r.offset, bytes.NewReader(r.data))
	}

	remaining := r.data
	offset := r.offset
	for len(remaining) > 0 {
		n, err := c.backend.WriteChunk(ctx, ino, offset, remaining)
		if err != nil {
			return err
		}
		if n == 0 {
			return model.Other("write_chunk made no progress")
		}
		remaining = remaining[n:]
		offset += n
	}

	return nil
}

// SetDelete records fh for deletion at cleanup. Marking a non-empty
// directory for deletion fails eagerly.
func (c *Core) SetDelete(ctx context.Context, fh uint64, del bool) error {
	h, err := c.lookup(fh)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if del && h.entry.IsDir() {
		children, err := c.backend.ListDir(ctx, h.ino)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return ErrDirectoryNotEmpty
		}
	}

	h.deleteOnClose = del
	return nil
}

// Release drains any pending write buffer, performs the deferred delete if
// the handle was marked, and forgets the handle.
func (c *Core) Release(ctx context.Context, fh uint64) error {
	h, err := c.lookup(fh)
	if err != nil {
		return err
	}

	h.mu.Lock()
	flushErr := c.flushLocked(ctx, h)

	var deleteErr error
	if h.deleteOnClose {
		if h.entry.IsDir() {
			deleteErr = c.backend.DeleteDir(ctx, h.parent, h.name)
		} else {
			deleteErr = c.backend.DeleteFile(ctx, h.parent, h.name)
		}
	}

	if h.large != nil {
		_ = h.large.close()
	}
	h.mu.Unlock()

	c.handles.remove(fh)

	if flushErr != nil {
		return flushErr
	}
	return deleteErr
}

// Entry returns the entry snapshot captured when fh was opened.
func (c *Core) Entry(fh uint64) (model.Entry, bool) {
	h, err := c.lookup(fh)
	if err != nil {
		return model.Entry{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entry, true
}

// InvalidateIno clears the cached entry snapshot of every open handle that
// refers to ino, e.g. after the file was renamed and the snapshot's name and
// path no longer hold.
func (c *Core) InvalidateIno(ino uint64) {
	c.handles.forEach(func(fh uint64, h *handle) {
		h.mu.Lock()
		if h.ino == ino {
			h.entry = model.Entry{Ino: ino}
		}
		h.mu.Unlock()
	})
}

// Backend exposes the wrapped RemoteBackend so platform adapters can issue
// calls (lookup, list_dir, create, rename, ...) that don't involve an open
// file handle.
func (c *Core) Backend() backend.RemoteBackend { return c.backend }
