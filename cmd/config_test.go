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

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := map[string]Size{
		"0":      0,
		"1024":   1024,
		"1KiB":   1 << 10,
		"100MiB": 100 << 20,
		"2GiB":   2 << 30,
		"1KB":    1000,
		"5MB":    5 * 1000 * 1000,
		"16B":    16,
	}

	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ParseSize("lots")
	assert.Error(t, err)
	_, err = ParseSize("12XiB")
	assert.Error(t, err)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Config{
		MountPoint:    "",
		RemoteAddress: "http://localhost:3000",
		LogFormat:     "text",
	}
	assert.Error(t, cfg.validate())

	cfg.MountPoint = "/mnt/rfs"
	cfg.LogFormat = "xml"
	assert.Error(t, cfg.validate())

	cfg.LogFormat = "json"
	require.NoError(t, cfg.validate())
	assert.NotZero(t, cfg.LargeFileThreshold, "zero threshold falls back to the default")
}
