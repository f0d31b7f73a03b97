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

// Package fake provides an in-memory RemoteBackend for tests: a mutable
// file tree with server-assigned inode numbers, millisecond mtimes, call
// counting, and injectable failures. Cache Layer and FS Adapter tests run
// against it without any HTTP server.
package fake

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/matteo027/remote-file-system/internal/backend"
	"github.com/matteo027/remote-file-system/internal/clock"
	"github.com/matteo027/remote-file-system/internal/model"
)

type node struct {
	entry    model.Entry
	data     []byte
	children map[string]uint64
	target   string // symlink target
}

// Backend is the fake. All methods are safe for concurrent use.
type Backend struct {
	mu      sync.Mutex
	clock   clock.Clock
	nodes   map[uint64]*node
	nextIno uint64

	calls    map[string]int
	failNext map[string]error

	// MaxWrite, when nonzero, caps how many bytes a single WriteChunk
	// accepts, exercising the partial-write contract.
	MaxWrite uint64

	// StreamChunkSize is how many bytes each Read from a ReadStream yields.
	StreamChunkSize int

	Total, Free uint64
}

func New(clk clock.Clock) *Backend {
	if clk == nil {
		clk = clock.NewFakeClock(time.Unix(1000, 0))
	}

	b := &Backend{
		clock:           clk,
		nodes:           make(map[uint64]*node),
		nextIno:         model.RootIno + 1,
		calls:           make(map[string]int),
		failNext:        make(map[string]error),
		StreamChunkSize: 32 * 1024,
		Total:           1 << 40,
		Free:            1 << 39,
	}

	now := clk.Now()
	b.nodes[model.RootIno] = &node{
		entry: model.Entry{
			Ino:    model.RootIno,
			Name:   "",
			Path:   "/",
			Kind:   model.KindDirectory,
			Perm:   0o755,
			Nlinks: 2,
			Atime:  now,
			Mtime:  now,
			Ctime:  now,
			Btime:  now,
		},
		children: make(map[string]uint64),
	}

	return b
}

var _ backend.RemoteBackend = (*Backend)(nil)

// CallCount reports how many times op was invoked ("list_dir", "read_chunk",
// ...).
func (b *Backend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// FailNext makes the next call to op return err instead of executing.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[op] = err
}

// SetMtime force-bumps an entry's mtime, standing in for a modification by
// another client.
func (b *Backend) SetMtime(ino uint64, t time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.nodes[ino]; ok {
		n.entry.Mtime = t
	}
}

// SetData replaces a file's contents without touching its mtime, so tests
// can distinguish cached reads from refetches.
func (b *Backend) SetData(ino uint64, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.nodes[ino]; ok {
		n.data = append([]byte(nil), data...)
		n.entry.Size = uint64(len(n.data))
	}
}

// Entry returns the current server-side entry for ino.
func (b *Backend) Entry(ino uint64) (model.Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.nodes[ino]
	if !ok {
		return model.Entry{}, false
	}
	return n.entry, true
}

func (b *Backend) enter(op string) error {
	b.calls[op]++
	if err, ok := b.failNext[op]; ok {
		delete(b.failNext, op)
		return err
	}
	return nil
}

func (b *Backend) dir(ino uint64) (*node, error) {
	n, ok := b.nodes[ino]
	if !ok || n.entry.Kind != model.KindDirectory {
		return nil, model.NotFound("")
	}
	return n, nil
}

func (b *Backend) file(ino uint64) (*node, error) {
	n, ok := b.nodes[ino]
	if !ok || n.entry.Kind != model.KindFile {
		return nil, model.NotFound("")
	}
	return n, nil
}

func (b *Backend) newNode(parent *node, name string, kind model.Kind) *node {
	now := b.clock.Now()

	ino := b.nextIno
	b.nextIno++

	path := parent.entry.Path + "/" + name
	if parent.entry.Ino == model.RootIno {
		path = "/" + name
	}

	n := &node{
		entry: model.Entry{
			Ino:    ino,
			Name:   name,
			Path:   path,
			Kind:   kind,
			Perm:   0o644,
			Nlinks: 1,
			Atime:  now,
			Mtime:  now,
			Ctime:  now,
			Btime:  now,
		},
	}
	if kind == model.KindDirectory {
		n.entry.Perm = 0o755
		n.entry.Nlinks = 2
		n.children = make(map[string]uint64)
	}

	b.nodes[ino] = n
	parent.children[name] = ino
	parent.entry.Mtime = now
	return n
}

func (b *Backend) ListDir(ctx context.Context, ino uint64) ([]model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("list_dir"); err != nil {
		return nil, err
	}

	d, err := b.dir(ino)
	if err != nil {
		return nil, err
	}

	entries := make([]model.Entry, 0, len(d.children))
	for _, child := range d.children {
		entries = append(entries, b.nodes[child].entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (b *Backend) GetAttr(ctx context.Context, ino uint64) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("get_attr"); err != nil {
		return model.Entry{}, err
	}

	n, ok := b.nodes[ino]
	if !ok {
		return model.Entry{}, model.NotFound("")
	}
	return n.entry, nil
}

func (b *Backend) GetAttrIfModifiedSince(ctx context.Context, ino uint64, since time.Time) (model.Entry, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("get_attr_if_modified_since"); err != nil {
		return model.Entry{}, false, err
	}

	n, ok := b.nodes[ino]
	if !ok {
		return model.Entry{}, false, model.NotFound("")
	}
	if !n.entry.Mtime.After(since) {
		return model.Entry{}, false, nil
	}
	return n.entry, true, nil
}

func (b *Backend) Lookup(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("lookup"); err != nil {
		return model.Entry{}, err
	}

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}

	child, ok := d.children[name]
	if !ok {
		return model.Entry{}, model.NotFound(name)
	}
	return b.nodes[child].entry, nil
}

func (b *Backend) CreateFile(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("create_file"); err != nil {
		return model.Entry{}, err
	}

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}
	if _, exists := d.children[name]; exists {
		return model.Entry{}, model.Conflict("entry already exists")
	}

	return b.newNode(d, name, model.KindFile).entry, nil
}

func (b *Backend) CreateDir(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("create_dir"); err != nil {
		return model.Entry{}, err
	}

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}
	if _, exists := d.children[name]; exists {
		return model.Entry{}, model.Conflict("entry already exists")
	}

	return b.newNode(d, name, model.KindDirectory).entry, nil
}

func (b *Backend) DeleteFile(ctx context.Context, parent uint64, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("delete_file"); err != nil {
		return err
	}
	return b.deleteChild(parent, name, model.KindFile)
}

func (b *Backend) DeleteDir(ctx context.Context, parent uint64, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("delete_dir"); err != nil {
		return err
	}
	return b.deleteChild(parent, name, model.KindDirectory)
}

func (b *Backend) deleteChild(parent uint64, name string, kind model.Kind) error {
	d, err := b.dir(parent)
	if err != nil {
		return err
	}

	child, ok := d.children[name]
	if !ok {
		return model.NotFound(name)
	}
	n := b.nodes[child]
	if n.entry.Kind != kind {
		return model.Conflict("entry kind mismatch")
	}
	if kind == model.KindDirectory && len(n.children) > 0 {
		return model.Conflict("directory not empty")
	}

	delete(d.children, name)
	delete(b.nodes, child)
	d.entry.Mtime = b.clock.Now()
	return nil
}

func (b *Backend) ReadChunk(ctx context.Context, ino uint64, offset, size uint64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("read_chunk"); err != nil {
		return nil, err
	}

	f, err := b.file(ino)
	if err != nil {
		return nil, err
	}

	if offset >= uint64(len(f.data)) {
		return nil, nil
	}
	end := offset + size
	if end > uint64(len(f.data)) {
		end = uint64(len(f.data))
	}
	return append([]byte(nil), f.data[offset:end]...), nil
}

func (b *Backend) WriteChunk(ctx context.Context, ino uint64, offset uint64, data []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("write_chunk"); err != nil {
		return 0, err
	}

	f, err := b.file(ino)
	if err != nil {
		return 0, err
	}

	n := uint64(len(data))
	if b.MaxWrite > 0 && n > b.MaxWrite {
		n = b.MaxWrite
	}

	b.writeAt(f, offset, data[:n])
	return n, nil
}

func (b *Backend) writeAt(f *node, offset uint64, data []byte) {
	end := offset + uint64(len(data))
	if end > uint64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:], data)
	f.entry.Size = uint64(len(f.data))
	f.entry.Mtime = b.clock.Now()
}

func (b *Backend) ReadStream(ctx context.Context, ino uint64, offset uint64) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("read_stream"); err != nil {
		return nil, err
	}

	f, err := b.file(ino)
	if err != nil {
		return nil, err
	}

	if offset > uint64(len(f.data)) {
		offset = uint64(len(f.data))
	}
	snapshot := append([]byte(nil), f.data[offset:]...)
	return io.NopCloser(&chunkedReader{data: snapshot, chunk: b.StreamChunkSize}), nil
}

// chunkedReader yields at most chunk bytes per Read, imitating a backend
// that picks its own stream chunk size.
type chunkedReader struct {
	data  []byte
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > r.chunk {
		n = r.chunk
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func (b *Backend) WriteStream(ctx context.Context, ino uint64, offset uint64, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.Other(err.Error())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ferr := b.enter("write_stream"); ferr != nil {
		return ferr
	}

	f, err := b.file(ino)
	if err != nil {
		return err
	}
	b.writeAt(f, offset, data)
	return nil
}

func (b *Backend) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("rename"); err != nil {
		return model.Entry{}, err
	}

	from, err := b.dir(oldParent)
	if err != nil {
		return model.Entry{}, err
	}
	to, err := b.dir(newParent)
	if err != nil {
		return model.Entry{}, err
	}

	child, ok := from.children[oldName]
	if !ok {
		return model.Entry{}, model.NotFound(oldName)
	}

	now := b.clock.Now()
	delete(from.children, oldName)
	to.children[newName] = child
	from.entry.Mtime = now
	to.entry.Mtime = now

	n := b.nodes[child]
	n.entry.Name = newName
	n.entry.Path = to.entry.Path + "/" + newName
	if to.entry.Ino == model.RootIno {
		n.entry.Path = "/" + newName
	}
	n.entry.Ctime = now
	return n.entry, nil
}

func (b *Backend) SetAttr(ctx context.Context, ino uint64, req model.SetAttrRequest) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("set_attr"); err != nil {
		return model.Entry{}, err
	}

	n, ok := b.nodes[ino]
	if !ok {
		return model.Entry{}, model.NotFound("")
	}

	now := b.clock.Now()
	if req.Perm != nil {
		n.entry.Perm = *req.Perm & 0o777
		n.entry.Ctime = now
	}
	if req.UID != nil {
		n.entry.UID = *req.UID
		n.entry.Ctime = now
	}
	if req.GID != nil {
		n.entry.GID = *req.GID
		n.entry.Ctime = now
	}
	if req.Size != nil && n.entry.Kind == model.KindFile {
		size := *req.Size
		switch {
		case size < uint64(len(n.data)):
			n.data = n.data[:size]
		case size > uint64(len(n.data)):
			grown := make([]byte, size)
			copy(grown, n.data)
			n.data = grown
		}
		n.entry.Size = size
		n.entry.Mtime = now
	}

	return n.entry, nil
}

func (b *Backend) Link(ctx context.Context, parent uint64, name string, target uint64) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("link"); err != nil {
		return model.Entry{}, err
	}

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}
	t, ok := b.nodes[target]
	if !ok {
		return model.Entry{}, model.NotFound("")
	}

	d.children[name] = target
	t.entry.Nlinks++
	d.entry.Mtime = b.clock.Now()
	return t.entry, nil
}

func (b *Backend) Symlink(ctx context.Context, parent uint64, name string, target string) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("symlink"); err != nil {
		return model.Entry{}, err
	}

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}
	if _, exists := d.children[name]; exists {
		return model.Entry{}, model.Conflict("entry already exists")
	}

	n := b.newNode(d, name, model.KindSymlink)
	n.target = target
	return n.entry, nil
}

func (b *Backend) Readlink(ctx context.Context, ino uint64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("readlink"); err != nil {
		return "", err
	}

	n, ok := b.nodes[ino]
	if !ok || n.entry.Kind != model.KindSymlink {
		return "", model.NotFound("")
	}
	return n.target, nil
}

func (b *Backend) GetSize(ctx context.Context) (total, free uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("get_size"); err != nil {
		return 0, 0, err
	}
	return b.Total, b.Free, nil
}

// WriteFileData is a test convenience: create a file under parent and fill
// it in one step, bypassing call counting.
func (b *Backend) WriteFileData(parent uint64, name string, data []byte) (model.Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, err := b.dir(parent)
	if err != nil {
		return model.Entry{}, err
	}
	if _, exists := d.children[name]; exists {
		return model.Entry{}, model.Conflict("entry already exists")
	}

	n := b.newNode(d, name, model.KindFile)
	n.data = append([]byte(nil), data...)
	n.entry.Size = uint64(len(n.data))
	return n.entry, nil
}
