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

package backend

import (
	"context"
	"io"
	"time"

	"github.com/matteo027/remote-file-system/internal/clock"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/model"
)

// TimingBackend decorates a RemoteBackend with per-operation wall-clock
// timing, one log line per call. It backs the --speed-testing flag; the
// writer behind log is ordinarily a dedicated rotating log file so timing
// data doesn't drown the main log.
type TimingBackend struct {
	inner RemoteBackend
	clock clock.Clock
	log   *logger.Logger
}

func NewTimingBackend(inner RemoteBackend, log *logger.Logger) *TimingBackend {
	return &TimingBackend{inner: inner, clock: clock.RealClock{}, log: log}
}

var _ RemoteBackend = (*TimingBackend)(nil)

func (t *TimingBackend) observe(op string, start time.Time, err error) {
	t.log.Infof("op=%s duration=%s ok=%v", op, t.clock.Now().Sub(start), err == nil)
}

func (t *TimingBackend) ListDir(ctx context.Context, ino uint64) ([]model.Entry, error) {
	start := t.clock.Now()
	entries, err := t.inner.ListDir(ctx, ino)
	t.observe("list_dir", start, err)
	return entries, err
}

func (t *TimingBackend) GetAttr(ctx context.Context, ino uint64) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.GetAttr(ctx, ino)
	t.observe("get_attr", start, err)
	return e, err
}

func (t *TimingBackend) GetAttrIfModifiedSince(ctx context.Context, ino uint64, since time.Time) (model.Entry, bool, error) {
	start := t.clock.Now()
	e, changed, err := t.inner.GetAttrIfModifiedSince(ctx, ino, since)
	t.observe("get_attr_if_modified_since", start, err)
	return e, changed, err
}

func (t *TimingBackend) Lookup(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.Lookup(ctx, parent, name)
	t.observe("lookup", start, err)
	return e, err
}

func (t *TimingBackend) CreateFile(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.CreateFile(ctx, parent, name)
	t.observe("create_file", start, err)
	return e, err
}

func (t *TimingBackend) CreateDir(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.CreateDir(ctx, parent, name)
	t.observe("create_dir", start, err)
	return e, err
}

func (t *TimingBackend) DeleteFile(ctx context.Context, parent uint64, name string) error {
	start := t.clock.Now()
	err := t.inner.DeleteFile(ctx, parent, name)
	t.observe("delete_file", start, err)
	return err
}

func (t *TimingBackend) DeleteDir(ctx context.Context, parent uint64, name string) error {
	start := t.clock.Now()
	err := t.inner.DeleteDir(ctx, parent, name)
	t.observe("delete_dir", start, err)
	return err
}

func (t *TimingBackend) ReadChunk(ctx context.Context, ino uint64, offset, size uint64) ([]byte, error) {
	start := t.clock.Now()
	data, err := t.inner.ReadChunk(ctx, ino, offset, size)
	t.observe("read_chunk", start, err)
	return data, err
}

func (t *TimingBackend) WriteChunk(ctx context.Context, ino uint64, offset uint64, data []byte) (uint64, error) {
	start := t.clock.Now()
	n, err := t.inner.WriteChunk(ctx, ino, offset, data)
	t.observe("write_chunk", start, err)
	return n, err
}

// ReadStream times only the stream's establishment; the pulls that follow
// happen at the caller's pace and are not individually observable here.
func (t *TimingBackend) ReadStream(ctx context.Context, ino uint64, offset uint64) (io.ReadCloser, error) {
	start := t.clock.Now()
	rc, err := t.inner.ReadStream(ctx, ino, offset)
	t.observe("read_stream", start, err)
	return rc, err
}

func (t *TimingBackend) WriteStream(ctx context.Context, ino uint64, offset uint64, r io.Reader) error {
	start := t.clock.Now()
	err := t.inner.WriteStream(ctx, ino, offset, r)
	t.observe("write_stream", start, err)
	return err
}

func (t *TimingBackend) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.Rename(ctx, oldParent, oldName, newParent, newName)
	t.observe("rename", start, err)
	return e, err
}

func (t *TimingBackend) SetAttr(ctx context.Context, ino uint64, req model.SetAttrRequest) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.SetAttr(ctx, ino, req)
	t.observe("set_attr", start, err)
	return e, err
}

func (t *TimingBackend) Link(ctx context.Context, parent uint64, name string, target uint64) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.Link(ctx, parent, name, target)
	t.observe("link", start, err)
	return e, err
}

func (t *TimingBackend) Symlink(ctx context.Context, parent uint64, name string, target string) (model.Entry, error) {
	start := t.clock.Now()
	e, err := t.inner.Symlink(ctx, parent, name, target)
	t.observe("symlink", start, err)
	return e, err
}

func (t *TimingBackend) Readlink(ctx context.Context, ino uint64) (string, error) {
	start := t.clock.Now()
	target, err := t.inner.Readlink(ctx, ino)
	t.observe("readlink", start, err)
	return target, err
}

func (t *TimingBackend) GetSize(ctx context.Context) (total, free uint64, err error) {
	start := t.clock.Now()
	total, free, err = t.inner.GetSize(ctx)
	t.observe("get_size", start, err)
	return
}
