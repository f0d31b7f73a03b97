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
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/matteo027/remote-file-system/internal/cache"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Size is a byte count that unmarshals from strings like "100MiB", so the
// large-file threshold can be given readably on the command line or in the
// config file.
type Size uint64

var sizeSuffixes = []struct {
	suffix string
	factor uint64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"GB", 1000 * 1000 * 1000},
	{"MB", 1000 * 1000},
	{"KB", 1000},
	{"B", 1},
}

func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	for _, u := range sizeSuffixes {
		if strings.HasSuffix(s, u.suffix) {
			n, err := strconv.ParseUint(strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid size %q: %w", s, err)
			}
			return Size(n * u.factor), nil
		}
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return Size(n), nil
}

// stringToSizeHookFunc lets viper decode Size fields from their string form.
func stringToSizeHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(Size(0)) {
			return data, nil
		}
		return ParseSize(data.(string))
	}
}

// Config is the resolved process configuration: flag values layered over
// environment variables (REMOTEFS_*) over an optional YAML config file.
type Config struct {
	MountPoint    string `mapstructure:"mount-point" yaml:"mount-point"`
	RemoteAddress string `mapstructure:"remote-address" yaml:"remote-address"`
	SpeedTesting  bool   `mapstructure:"speed-testing" yaml:"speed-testing"`

	LogFormat      string `mapstructure:"log-format" yaml:"log-format"`
	LogSeverity    string `mapstructure:"log-severity" yaml:"log-severity"`
	MetricsAddress string `mapstructure:"metrics-address" yaml:"metrics-address"`
	Tracing        bool   `mapstructure:"tracing" yaml:"tracing"`
	Foreground     bool   `mapstructure:"foreground" yaml:"foreground"`

	LargeFileThreshold Size `mapstructure:"large-file-threshold" yaml:"large-file-threshold"`

	// Cache tier capacities; config-file / environment only.
	MetadataCacheCapacity uint64 `mapstructure:"metadata-cache-capacity" yaml:"metadata-cache-capacity"`
	DirCacheCapacity      uint64 `mapstructure:"dir-cache-capacity" yaml:"dir-cache-capacity"`
	BlocksPerFile         uint64 `mapstructure:"blocks-per-file" yaml:"blocks-per-file"`
	MaxFileBlockCaches    uint64 `mapstructure:"max-file-block-caches" yaml:"max-file-block-caches"`
}

func bindFlags(flags *pflag.FlagSet) error {
	flags.StringP("mount-point", "m", defaultMountPoint(), "Where to mount the remote filesystem")
	flags.StringP("remote-address", "r", "http://localhost:3000", "Base URL of the remote filesystem server")
	flags.Bool("speed-testing", false, "Log per-operation backend timings to a dedicated log file (UNIX only)")
	flags.String("log-format", "text", "Log rendering: text or json")
	flags.String("log-severity", "info", "Minimum log severity: trace, debug, info, warning, error")
	flags.String("metrics-address", "", "host:port to expose Prometheus /metrics on (disabled when empty)")
	flags.Bool("tracing", false, "Emit OpenTelemetry spans for backend calls")
	flags.Bool("foreground", false, "Stay attached to the terminal instead of daemonizing")
	flags.String("large-file-threshold", "100MiB", "File size above which reads stream instead of paging")

	return viper.BindPFlags(flags)
}

func setDefaults() {
	cacheDefaults := cache.DefaultConfig()
	viper.SetDefault("metadata-cache-capacity", cacheDefaults.MetadataCapacity)
	viper.SetDefault("dir-cache-capacity", cacheDefaults.DirectoryCapacity)
	viper.SetDefault("blocks-per-file", cacheDefaults.BlockCapacityPerFile)
	viper.SetDefault("max-file-block-caches", cacheDefaults.MaxPerFileBlockCaches)
}

func decodeConfig(out *Config) error {
	return viper.Unmarshal(out, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToSizeHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
}

func (c *Config) validate() error {
	if c.MountPoint == "" {
		return fmt.Errorf("--mount-point must not be empty")
	}
	if _, err := url.Parse(c.RemoteAddress); err != nil {
		return fmt.Errorf("invalid --remote-address %q: %w", c.RemoteAddress, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown --log-format %q", c.LogFormat)
	}
	if c.LargeFileThreshold == 0 {
		c.LargeFileThreshold = Size(fscore.DefaultLargeFileThreshold)
	}
	return nil
}

func (c *Config) cacheConfig() cache.Config {
	return cache.Config{
		MetadataCapacity:      c.MetadataCacheCapacity,
		DirectoryCapacity:     c.DirCacheCapacity,
		BlockCapacityPerFile:  c.BlocksPerFile,
		MaxPerFileBlockCaches: c.MaxFileBlockCaches,
	}
}
