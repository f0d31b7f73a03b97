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

//go:build !linux

package daemon

import "errors"

// ErrUnsupported is returned on hosts without daemonization support; the CLI
// falls back to running in the foreground.
var ErrUnsupported = errors.New("daemonization is only supported on linux")

func IsChild() bool { return false }

func Spawn(Payload) error { return ErrUnsupported }

func Setup() (Payload, error) { return Payload{}, ErrUnsupported }

func Cleanup() {}
