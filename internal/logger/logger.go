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

// Package logger provides the structured logger shared by every component:
// a thin wrapper over log/slog with an extra TRACE severity below DEBUG and
// a choice of text or JSON rendering.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"time"
)

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
)

var levelNames = map[slog.Leveler]string{
	LevelTrace:   "TRACE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarning: "WARNING",
	LevelError:   "ERROR",
}

// Format selects the on-wire rendering of log records.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseSeverity maps a CLI-facing severity name to a slog.Level.
func ParseSeverity(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log severity %q", s)
	}
}

// Logger wraps *slog.Logger with printf-style convenience methods matching
// the adapter/cache/backend call sites' style.
type Logger struct {
	inner *slog.Logger
}

// New builds a Logger writing to w at format and minimum level.
func New(w io.Writer, format Format, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				lvl := a.Value.Any().(slog.Level)
				if name, ok := levelNames[lvl]; ok {
					a.Value = slog.StringValue(name)
				}
				a.Key = "severity"
			}
			if a.Key == slog.MessageKey {
				a.Key = "message"
			}
			if a.Key == slog.TimeKey {
				a.Key = "time"
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006/01/02 15:04:05.000000"))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{inner: slog.New(handler)}
}

// Default returns a text logger at INFO severity writing to stderr, used
// wherever a component is constructed without an explicit logger (tests,
// standalone tools).
func Default() *Logger {
	return New(os.Stderr, FormatText, LevelInfo)
}

func (l *Logger) log(level slog.Level, msg string) {
	l.inner.Log(context.Background(), level, msg)
}

func (l *Logger) Tracef(format string, args ...interface{})   { l.log(LevelTrace, fmt.Sprintf(format, args...)) }
func (l *Logger) Debugf(format string, args ...interface{})   { l.log(LevelDebug, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})    { l.log(LevelInfo, fmt.Sprintf(format, args...)) }
func (l *Logger) Warningf(format string, args ...interface{}) { l.log(LevelWarning, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{})   { l.log(LevelError, fmt.Sprintf(format, args...)) }

// With returns a Logger that attaches the given key/value pairs to every
// subsequent record, mirroring slog's structured-attribute style.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Std bridges to the standard library's *log.Logger for APIs that demand one
// (e.g. the FUSE mount config's ErrorLogger); records land in this logger's
// handler at the given level.
func (l *Logger) Std(level slog.Level) *log.Logger {
	return slog.NewLogLogger(l.inner.Handler(), level)
}
