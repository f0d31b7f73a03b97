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

// Package backend implements the Remote Backend contract: an HTTP client
// that speaks the server's REST surface verbatim, and the RemoteBackend
// interface both it and the cache layer satisfy. Polymorphism over
// {raw client, cached wrapper} is by interface, not inheritance.
package backend

import (
	"context"
	"io"
	"time"

	"github.com/matteo027/remote-file-system/internal/model"
)

// RemoteBackend is the uniform operation surface addressed by inode numbers.
// Every method fails with a *model.Error; callers must not inspect the HTTP
// layer. Implemented by both Client (the raw HTTP facade) and
// internal/cache.Layer (the caching wrapper), so the FS Adapter can be
// handed either one interchangeably.
type RemoteBackend interface {
	ListDir(ctx context.Context, ino uint64) ([]model.Entry, error)
	GetAttr(ctx context.Context, ino uint64) (model.Entry, error)
	GetAttrIfModifiedSince(ctx context.Context, ino uint64, since time.Time) (model.Entry, bool, error)
	Lookup(ctx context.Context, parent uint64, name string) (model.Entry, error)

	CreateFile(ctx context.Context, parent uint64, name string) (model.Entry, error)
	CreateDir(ctx context.Context, parent uint64, name string) (model.Entry, error)
	DeleteFile(ctx context.Context, parent uint64, name string) error
	DeleteDir(ctx context.Context, parent uint64, name string) error

	ReadChunk(ctx context.Context, ino uint64, offset, size uint64) ([]byte, error)
	WriteChunk(ctx context.Context, ino uint64, offset uint64, data []byte) (uint64, error)
	ReadStream(ctx context.Context, ino uint64, offset uint64) (io.ReadCloser, error)
	WriteStream(ctx context.Context, ino uint64, offset uint64, r io.Reader) error

	Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) (model.Entry, error)
	SetAttr(ctx context.Context, ino uint64, req model.SetAttrRequest) (model.Entry, error)

	Link(ctx context.Context, parent uint64, name string, target uint64) (model.Entry, error)
	Symlink(ctx context.Context, parent uint64, name string, target string) (model.Entry, error)
	Readlink(ctx context.Context, ino uint64) (string, error)

	GetSize(ctx context.Context) (total, free uint64, err error)
}
