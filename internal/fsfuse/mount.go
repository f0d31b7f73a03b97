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
	"fmt"
	"time"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/logger"
)

// Mount serves the filesystem at mountPoint and returns the kernel session.
// The caller joins the session to block until unmount and calls Unmount to
// tear it down.
func Mount(mountPoint string, core *fscore.Core, log *logger.Logger) (*fuse.MountedFileSystem, error) {
	server := fuseutil.NewFileSystemServer(New(core, log))

	cfg := &fuse.MountConfig{
		FSName:      "remote-fs",
		Subtype:     "remotefs",
		VolumeName:  "remote-fs",
		ErrorLogger: log.Std(logger.LevelError),

		// Writes must reach WriteFile promptly so the per-handle buffer sees
		// them before flush; kernel writeback batching would reorder that.
		DisableWritebackCaching: true,
	}

	mfs, err := fuse.Mount(mountPoint, server, cfg)
	if err != nil {
		return nil, fmt.Errorf("mounting %s: %w", mountPoint, err)
	}

	return mfs, nil
}

// Unmount detaches the kernel session, retrying briefly: the mount point is
// often still busy for a moment after the last handle closes.
func Unmount(mountPoint string, log *logger.Logger) error {
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		err = fuse.Unmount(mountPoint)
		if err == nil {
			return nil
		}
		log.Warningf("unmount %s: %v (retrying)", mountPoint, err)
		time.Sleep(200 * time.Millisecond)
	}
	return err
}
