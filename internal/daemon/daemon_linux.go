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

//go:build linux

package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsChild reports whether this process is the re-executed daemon.
func IsChild() bool {
	return os.Getenv(envMarker) != ""
}

// Spawn re-executes the current binary as a detached daemon, handing it the
// payload over an inherited pipe, and returns in the parent once the child
// has started. Startup fails if the PID file names a live process.
func Spawn(payload Payload) error {
	if pid, alive := pidFileAlive(); alive {
		return fmt.Errorf("daemon already running with pid %d (per %s)", pid, PIDFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	logFile, err := os.OpenFile(LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer logFile.Close()

	errFile, err := os.OpenFile(ErrFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return fmt.Errorf("opening daemon error log: %w", err)
	}
	defer errFile.Close()

	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("creating credentials pipe: %w", err)
	}
	defer r.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), envMarker+"=1")
	cmd.Stdout = logFile
	cmd.Stderr = errFile
	cmd.ExtraFiles = []*os.File{r}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		w.Close()
		return fmt.Errorf("starting daemon: %w", err)
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		w.Close()
		return fmt.Errorf("handing credentials to daemon: %w", err)
	}
	w.Close()

	if err := os.WriteFile(PIDFile, []byte(strconv.Itoa(cmd.Process.Pid)+"\n"), 0o640); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}

	// The child is now on its own; don't reap it.
	return cmd.Process.Release()
}

// Setup finishes detaching inside the child: read the credentials pipe,
// chdir to /, and set the daemon umask.
func Setup() (Payload, error) {
	pipe := os.NewFile(credsFD, "credentials")
	if pipe == nil {
		return Payload{}, errors.New("daemon child started without a credentials pipe")
	}
	defer pipe.Close()

	var payload Payload
	if err := json.NewDecoder(pipe).Decode(&payload); err != nil {
		return Payload{}, fmt.Errorf("reading credentials from parent: %w", err)
	}

	if err := os.Chdir("/"); err != nil {
		return Payload{}, fmt.Errorf("chdir /: %w", err)
	}
	unix.Umask(0o027)

	return payload, nil
}

// Cleanup removes the PID file on clean shutdown.
func Cleanup() {
	_ = os.Remove(PIDFile)
}

// pidFileAlive reports whether the PID file exists and names a live process.
// A stale file (dead process, unparsable contents) does not block startup.
func pidFileAlive() (int, bool) {
	data, err := os.ReadFile(PIDFile)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	// Signal 0 probes existence without delivering anything.
	if err := unix.Kill(pid, 0); err != nil {
		return 0, false
	}
	return pid, true
}
