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

// Package clock abstracts "now" so the fake backend's mtimes and the timing
// backend's call durations can be driven deterministically under test.
package clock

import (
	"time"

	"github.com/jacobsa/timeutil"
)

type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock through timeutil, the same source the rest
// of the process uses for tickers and deadlines.
type RealClock struct{}

var wall = timeutil.RealClock()

func (RealClock) Now() time.Time { return wall.Now() }
