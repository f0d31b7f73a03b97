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
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/matteo027/remote-file-system/internal/backend"
	"github.com/matteo027/remote-file-system/internal/cache"
	"github.com/matteo027/remote-file-system/internal/daemon"
	"github.com/matteo027/remote-file-system/internal/fscore"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/metrics"
	"github.com/matteo027/remote-file-system/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

const speedLogFile = "/tmp/remote-fs-speed.log"

func newLogger(cfg *Config, daemonized bool) (*logger.Logger, error) {
	severity, err := logger.ParseSeverity(cfg.LogSeverity)
	if err != nil {
		return nil, err
	}

	format := logger.FormatText
	if cfg.LogFormat == "json" {
		format = logger.FormatJSON
	}

	var w io.Writer = os.Stderr
	if daemonized {
		w = &lumberjack.Logger{
			Filename:   daemon.LogFile,
			MaxSize:    50, // MiB
			MaxBackups: 3,
		}
	}

	return logger.New(w, format, severity), nil
}

// runMount assembles the pipeline and serves the mount until unmounted.
//
// In the default (daemonizing) mode on Linux the flow runs twice: the parent
// authenticates on the controlling terminal, spawns the detached child with
// the validated credentials, and exits; the child re-enters here, logs in
// with the inherited credentials, and performs the actual mount.
func runMount(cfg *Config) error {
	isDaemon := daemon.IsChild()

	log, err := newLogger(cfg, isDaemon)
	if err != nil {
		return err
	}

	if dump, err := yaml.Marshal(cfg); err == nil {
		log.Debugf("resolved configuration:\n%s", dump)
	}

	shutdownTracing, err := tracing.Setup(cfg.Tracing, "remote-fs")
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	registry := prometheus.NewRegistry()
	backendMetrics := metrics.NewBackendMetrics(registry)
	cacheMetrics := metrics.NewCacheMetrics(registry)

	client, err := backend.NewClient(cfg.RemoteAddress, log, backendMetrics)
	if err != nil {
		return err
	}

	ctx := context.Background()

	var creds backend.Credentials
	if isDaemon {
		payload, err := daemon.Setup()
		if err != nil {
			return err
		}
		creds = backend.Credentials{Username: payload.Username, Password: payload.Password}
		if err := client.Login(ctx, creds); err != nil {
			return fmt.Errorf("daemon login: %w", err)
		}
	} else {
		creds, err = backend.PromptCredentials(ctx, client)
		if err != nil {
			return fmt.Errorf("authentication: %w", err)
		}
	}

	if !cfg.Foreground && !isDaemon {
		if runtime.GOOS == "linux" {
			// The child re-executes with the same flags and takes over from
			// here; our part is done once it is running.
			return daemon.Spawn(daemon.Payload{Username: creds.Username, Password: creds.Password})
		}
		log.Warningf("daemonization is not supported on %s; staying in the foreground", runtime.GOOS)
	}
	if isDaemon {
		defer daemon.Cleanup()
	}

	if cfg.MetricsAddress != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddress, registry); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	var remote backend.RemoteBackend = cache.New(client, cfg.cacheConfig(), cacheMetrics)

	if cfg.SpeedTesting && runtime.GOOS != "windows" {
		speedLog := logger.New(&lumberjack.Logger{
			Filename:   speedLogFile,
			MaxSize:    50,
			MaxBackups: 2,
		}, logger.FormatText, logger.LevelInfo)
		remote = backend.NewTimingBackend(remote, speedLog)
	}

	core := fscore.New(remote, fscore.Config{
		LargeFileThreshold: uint64(cfg.LargeFileThreshold),
	}, log)

	join, unmount, err := mountHost(cfg.MountPoint, core, log)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	watchSignals(log, unmount)

	log.Infof("serving %s at %s", cfg.RemoteAddress, cfg.MountPoint)
	if err := join(ctx); err != nil {
		return fmt.Errorf("serving filesystem: %w", err)
	}

	log.Infof("unmounted cleanly")
	return nil
}
