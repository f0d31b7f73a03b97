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

// DefaultLargeFileThreshold is the small-vs-large read/write strategy
// cutoff. Config.LargeFileThreshold can be overridden by the CLI's
// --large-file-threshold flag.
const DefaultLargeFileThreshold uint64 = 100 * 1024 * 1024

// Config bounds the behavior the FS Adapter's core logic applies uniformly
// across both host adapters.
type Config struct {
	// LargeFileThreshold is the file-size cutoff, in bytes, above which Open
	// installs LargeStream read mode instead of SmallPages, and above which
	// a coalesced write run is dispatched through WriteStream instead of
	// WriteChunk.
	LargeFileThreshold uint64
}

func DefaultConfig() Config {
	return Config{LargeFileThreshold: DefaultLargeFileThreshold}
}
