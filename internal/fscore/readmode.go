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

package fscore

import (
	"context"
	"io"

	"github.com/matteo027/remote-file-system/internal/backend"
)

// readMode tags which read strategy a handle was opened under.
type readMode int

const (
	modeSmallPages readMode = iota
	modeLargeStream
)

// largeStream is the per-handle state for LargeStream mode: the current
// stream position, an in-memory buffer of bytes pulled but not yet
// delivered, the lazily-opened backend stream, and whether it has reached
// EOF.
type largeStream struct {
	pos  uint64
	buf  []byte
	body io.ReadCloser
	eof  bool
}

func (ls *largeStream) close() error {
	if ls.body == nil {
		return nil
	}
	err := ls.body.Close()
	ls.body = nil
	return err
}

// fill pulls from the backend stream into ls.buf until at least want bytes
// are buffered or the stream ends, opening the stream lazily on first use
// the stream lazily on first use.
func (ls *largeStream) fill(ctx context.Context, b backend.RemoteBackend, ino uint64, want int) error {
	if ls.body == nil && !ls.eof {
		body, err := b.ReadStream(ctx, ino, ls.pos+uint64(len(ls.buf)))
		if err != nil {
			return err
		}
		ls.body = body
	}

	chunk := make([]byte, 64*1024)
	for len(ls.buf) < want && !ls.eof {
		n, err := ls.body.Read(chunk)
		if n > 0 {
			ls.buf = append(ls.buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				ls.eof = true
				_ = ls.close()
				break
			}
			return err
		}
	}

	return nil
}

// drain removes up to size bytes from the front of ls.buf and advances pos.
func (ls *largeStream) drain(size int) []byte {
	if size > len(ls.buf) {
		size = len(ls.buf)
	}
	out := ls.buf[:size]
	ls.buf = ls.buf[size:]
	ls.pos += uint64(size)
	return out
}
