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

//go:build !windows

package fsfuse

import (
	"errors"
	"syscall"

	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/model"
)

// errno translates the typed backend error taxonomy and the adapter-local
// sentinel errors into the errno surface the kernel expects.
func errno(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, fscore.ErrNotSequential):
		return syscall.ESPIPE
	case errors.Is(err, fscore.ErrNotSupported):
		return syscall.ENOSYS
	case errors.Is(err, fscore.ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, fscore.ErrUnknownHandle):
		return syscall.EBADF
	}

	var be *model.Error
	if !errors.As(err, &be) {
		return syscall.EIO
	}

	switch be.Kind {
	case model.KindNotFound:
		return syscall.ENOENT
	case model.KindUnauthorized:
		return syscall.EPERM
	case model.KindForbidden:
		return syscall.EACCES
	case model.KindConflict:
		return syscall.EEXIST
	case model.KindBadAnswerFormat:
		return syscall.EPROTO
	case model.KindInternalServerError:
		return syscall.EIO
	case model.KindServerUnreachable:
		return syscall.EHOSTUNREACH
	default:
		return syscall.EIO
	}
}
