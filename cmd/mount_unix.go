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

package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/fsfuse"
	"github.com/matteo027/remote-file-system/internal/logger"
)

func defaultMountPoint() string {
	return filepath.Join(os.TempDir(), "remote-fs")
}

// mountHost mounts through jacobsa/fuse. join blocks until the kernel
// session ends; unmount asks the kernel to end it.
func mountHost(mountPoint string, core *fscore.Core, log *logger.Logger) (join func(context.Context) error, unmount func(), err error) {
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return nil, nil, err
	}

	mfs, err := fsfuse.Mount(mountPoint, core, log)
	if err != nil {
		return nil, nil, err
	}

	join = mfs.Join
	unmount = func() {
		if err := fsfuse.Unmount(mountPoint, log); err != nil {
			log.Errorf("unmount failed: %v", err)
		}
	}
	return join, unmount, nil
}
