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

import "sort"

// writeBuffer is the per-handle ordered map offset -> bytes. Writes land
// here immediately and are coalesced into runs only at flush/close time.
type writeBuffer struct {
	fragments map[uint64][]byte
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{fragments: make(map[uint64][]byte)}
}

// insert records a fragment, reporting its length as the bytes-written
// count the caller returns to the kernel immediately.
func (b *writeBuffer) insert(offset uint64, data []byte) int {
	cp := make([]byte, len(data))
	copy(cp, data)
	b.fragments[offset] = cp
	return len(cp)
}

func (b *writeBuffer) empty() bool { return len(b.fragments) == 0 }

// run is one coalesced, contiguous output buffer ready to dispatch to the
// backend as a single WriteChunk or WriteStream call.
type run struct {
	offset uint64
	data   []byte
}

// drain walks the buffer in ascending offset order, coalescing adjacent
// fragments (next key == prev_offset + prev_len) into single runs, and
// clears the buffer. A gap between fragments starts a new run; the trailing
// run is always emitted.
func (b *writeBuffer) drain() []run {
	if len(b.fragments) == 0 {
		return nil
	}

	offsets := make([]uint64, 0, len(b.fragments))
	for off := range b.fragments {
		offsets = append(offsets, off)
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	var runs []run
	cur := run{offset: offsets[0], data: append([]byte(nil), b.fragments[offsets[0]]...)}

	for _, off := range offsets[1:] {
		frag := b.fragments[off]
		if off == cur.offset+uint64(len(cur.data)) {
			cur.data = append(cur.data, frag...)
			continue
		}
		runs = append(runs, cur)
		cur = run{offset: off, data: append([]byte(nil), frag...)}
	}
	runs = append(runs, cur)

	b.fragments = make(map[uint64][]byte)
	return runs
}
