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
	"time"

	"github.com/matteo027/remote-file-system/internal/model"
)

// wireEntry is the server's JSON representation of an entry: path,
// owner/group ids, a numeric type tag, permissions, size, four
// millisecond-epoch timestamps, plus ino and nlinks.
type wireEntry struct {
	Ino         uint64  `json:"ino"`
	Path        string  `json:"path"`
	Owner       uint32  `json:"owner"`
	Group       *uint32 `json:"group"`
	Type        uint8   `json:"type"`
	Permissions uint16  `json:"permissions"`
	Size        uint64  `json:"size"`
	Nlinks      uint32  `json:"nlinks"`
	Atime       int64   `json:"atime"`
	Mtime       int64   `json:"mtime"`
	Ctime       int64   `json:"ctime"`
	Btime       int64   `json:"btime"`
}

type wireSetAttrRequest struct {
	Perm  *uint16 `json:"perm,omitempty"`
	UID   *uint32 `json:"uid,omitempty"`
	GID   *uint32 `json:"gid,omitempty"`
	Size  *uint64 `json:"size,omitempty"`
	Flags *uint32 `json:"flags,omitempty"`
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func timeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func kindFromWire(t uint8) model.Kind {
	switch t {
	case 1:
		return model.KindDirectory
	case 2:
		return model.KindSymlink
	default:
		return model.KindFile
	}
}

func kindToWire(k model.Kind) uint8 {
	switch k {
	case model.KindDirectory:
		return 1
	case model.KindSymlink:
		return 2
	default:
		return 0
	}
}

func entryFromWire(w wireEntry) model.Entry {
	gid := w.Owner
	if w.Group != nil {
		gid = *w.Group
	}

	name := w.Path
	for i := len(w.Path) - 1; i >= 0; i-- {
		if w.Path[i] == '/' {
			name = w.Path[i+1:]
			break
		}
	}

	return model.Entry{
		Ino:    w.Ino,
		Name:   name,
		Path:   w.Path,
		Kind:   kindFromWire(w.Type),
		Size:   w.Size,
		Perm:   w.Permissions,
		UID:    w.Owner,
		GID:    gid,
		Nlinks: w.Nlinks,
		Atime:  millisToTime(w.Atime),
		Mtime:  millisToTime(w.Mtime),
		Ctime:  millisToTime(w.Ctime),
		Btime:  millisToTime(w.Btime),
	}
}

func setAttrToWire(req model.SetAttrRequest) wireSetAttrRequest {
	return wireSetAttrRequest{
		Perm:  req.Perm,
		UID:   req.UID,
		GID:   req.GID,
		Size:  req.Size,
		Flags: req.Flags,
	}
}
