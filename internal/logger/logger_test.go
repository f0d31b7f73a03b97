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

package logger_test

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite
	buf *bytes.Buffer
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func (t *LoggerTest) SetupTest() {
	t.buf = new(bytes.Buffer)
}

func (t *LoggerTest) TestTextFormatIncludesSeverityAndMessage() {
	l := logger.New(t.buf, logger.FormatText, logger.LevelTrace)
	l.Tracef("hello %s", "world")

	re := regexp.MustCompile(`severity=TRACE message="hello world"`)
	t.Regexp(re, t.buf.String())
}

func (t *LoggerTest) TestJSONFormatIncludesSeverityAndMessage() {
	l := logger.New(t.buf, logger.FormatJSON, logger.LevelTrace)
	l.Infof("started")

	t.Contains(t.buf.String(), `"severity":"INFO"`)
	t.Contains(t.buf.String(), `"message":"started"`)
}

func (t *LoggerTest) TestBelowMinimumSeverityIsDropped() {
	l := logger.New(t.buf, logger.FormatText, logger.LevelWarning)
	l.Debugf("should not appear")

	t.Empty(t.buf.String())
}

func (t *LoggerTest) TestParseSeverityRejectsUnknown() {
	_, err := logger.ParseSeverity("verbose")
	t.Error(err)
}
