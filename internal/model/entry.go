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

// Package model defines the data types shared by the backend client, the
// cache layer, and the filesystem adapters: the wire-independent view of a
// remote entry and the attributes a caller may change on it.
package model

import "time"

// Kind tags what an Entry represents on the remote tree.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// RootIno is the inode number of the remote tree's root directory.
const RootIno uint64 = 1

// Entry is the metadata record for one remote filesystem entry. mtime is the
// freshness token the cache layer uses for conditional revalidation.
type Entry struct {
	Ino    uint64
	Name   string
	Path   string
	Kind   Kind
	Size   uint64
	Perm   uint16 // low 9 bits POSIX mode
	UID    uint32
	GID    uint32
	Nlinks uint32

	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	Btime time.Time
}

// IsDir reports whether the entry names a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDirectory }

// SetAttrRequest carries the attributes a setattr call wants to change.
// A nil field means "leave unchanged". Size shorter than current truncates;
// longer zero-extends. Time fields are intentionally absent: this revision
// does not forward atime/mtime updates from setattr.
type SetAttrRequest struct {
	Perm  *uint16
	UID   *uint32
	GID   *uint32
	Size  *uint64
	Flags *uint32
}
