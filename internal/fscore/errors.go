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

import "errors"

// Sentinel errors the platform adapters (internal/fsfuse, internal/fswin)
// translate into host errno / NTSTATUS values. These never cross the
// backend.RemoteBackend boundary; they describe adapter-local state machine
// violations, not remote failures.
var (
	// ErrNotSequential is returned by Read when a LargeStream handle receives
	// a request at an offset other than its current stream position.
	ErrNotSequential = errors.New("fscore: non-sequential read on a large-file stream handle")

	// ErrNotSupported is returned by Write on a handle that was not opened
	// writable.
	ErrNotSupported = errors.New("fscore: operation not supported by the filesystem adapter")

	// ErrDirectoryNotEmpty is returned by SetDelete when a directory handle
	// is marked for deletion while its listing is non-empty.
	ErrDirectoryNotEmpty = errors.New("fscore: directory not empty")

	// ErrUnknownHandle is returned when a caller references a file handle
	// that is not (or no longer) open.
	ErrUnknownHandle = errors.New("fscore: unknown file handle")
)
