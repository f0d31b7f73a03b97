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

// Package daemon detaches the process from its controlling terminal on
// Linux: the parent authenticates interactively, then re-executes itself
// with stdio redirected to the daemon log files and hands the captured
// credentials to the child over an inherited pipe. A PID file guards against
// double starts.
package daemon

const (
	// envMarker tells a re-executed child it is the daemon.
	envMarker = "REMOTEFS_DAEMON"

	// credsFD is the file descriptor number the credentials pipe is inherited
	// on (stdin/stdout/stderr occupy 0-2).
	credsFD = 3

	PIDFile = "/tmp/remote-fs.pid"
	LogFile = "/tmp/remote-fs.log"
	ErrFile = "/tmp/remote-fs.err"
)

// Payload is what the parent hands the daemon child: the credentials the
// interactive login loop validated before detaching.
type Payload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
