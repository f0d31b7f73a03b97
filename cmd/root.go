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

// Package cmd is the process layer: command-line parsing, configuration
// layering, daemonization, signal-driven unmount, and assembly of the
// backend -> cache -> adapter pipeline.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	bindErr       error
	configFileErr error
	unmarshalErr  error

	config Config
)

var rootCmd = &cobra.Command{
	Use:   "remote-fs",
	Short: "Mount a remote HTTP filesystem locally",
	Long: `remote-fs mounts a remote file tree served over HTTP as a local
filesystem (FUSE on Linux/macOS, WinFsp on Windows) and keeps it coherent
with a revalidating multi-tier cache.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		if unmarshalErr != nil {
			return unmarshalErr
		}
		if err := config.validate(); err != nil {
			return err
		}
		return runMount(&config)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file")
	bindErr = bindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	setDefaults()

	viper.SetEnvPrefix("REMOTEFS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("reading config file %s: %w", cfgFile, err)
			return
		}
	}

	unmarshalErr = decodeConfig(&config)
}
