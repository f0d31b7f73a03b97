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

package cmd

import (
	"context"
	"errors"

	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/fswin"
	"github.com/matteo027/remote-file-system/internal/logger"
)

func defaultMountPoint() string {
	return "R:"
}

// mountHost mounts through cgofuse/WinFsp. cgofuse's Mount call itself
// blocks for the lifetime of the mount, so it runs inside join.
func mountHost(mountPoint string, core *fscore.Core, log *logger.Logger) (join func(context.Context) error, unmount func(), err error) {
	host := fswin.Host(core, log)

	join = func(context.Context) error {
		if !host.Mount(mountPoint, nil) {
			return errors.New("winfsp mount failed")
		}
		return nil
	}
	unmount = func() {
		if !host.Unmount() {
			log.Errorf("unmount failed")
		}
	}
	return join, unmount, nil
}
