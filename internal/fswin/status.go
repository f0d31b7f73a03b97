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

//go:build windows

package fswin

import (
	"errors"

	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/winfsp/cgofuse/fuse"
)

// status translates the typed backend taxonomy and adapter-local sentinels
// into the negated errno values cgofuse returns to WinFsp, which maps them
// onto NTSTATUS codes.
func status(err error) int {
	if err == nil {
		return 0
	}

	switch {
	case errors.Is(err, fscore.ErrNotSequential):
		return -fuse.ESPIPE
	case errors.Is(err, fscore.ErrNotSupported):
		return -fuse.ENOSYS
	case errors.Is(err, fscore.ErrDirectoryNotEmpty):
		return -fuse.ENOTEMPTY
	case errors.Is(err, fscore.ErrUnknownHandle):
		return -fuse.EBADF
	}

	var be *model.Error
	if !errors.As(err, &be) {
		return -fuse.EIO
	}

	switch be.Kind {
	case model.KindNotFound:
		return -fuse.ENOENT
	case model.KindUnauthorized:
		return -fuse.EPERM
	case model.KindForbidden:
		return -fuse.EACCES
	case model.KindConflict:
		return -fuse.EEXIST
	case model.KindBadAnswerFormat:
		return -fuse.EPROTO
	case model.KindInternalServerError:
		return -fuse.EIO
	case model.KindServerUnreachable:
		return -fuse.EHOSTUNREACH
	default:
		return -fuse.EIO
	}
}
