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

package model

import "fmt"

// ErrorKind enumerates the typed errors the RemoteBackend contract may
// return. Callers must never inspect the HTTP layer directly; they switch on
// Kind.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindBadAnswerFormat
	KindInternalServerError
	KindServerUnreachable
)

// Error is the single error type returned across the Backend Client / Cache
// Layer boundary. Msg carries extra context for Conflict and Other; Path
// carries the offending path for NotFound where known.
type Error struct {
	Kind ErrorKind
	Msg  string
	Path string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		if e.Path != "" {
			return fmt.Sprintf("not found: %s", e.Path)
		}
		return "not found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return fmt.Sprintf("conflict: %s", e.Msg)
	case KindBadAnswerFormat:
		return fmt.Sprintf("bad answer format: %s", e.Msg)
	case KindInternalServerError:
		return "internal server error"
	case KindServerUnreachable:
		return "server unreachable"
	default:
		return fmt.Sprintf("backend error: %s", e.Msg)
	}
}

func NotFound(path string) *Error        { return &Error{Kind: KindNotFound, Path: path} }
func Unauthorized() *Error               { return &Error{Kind: KindUnauthorized} }
func Forbidden() *Error                  { return &Error{Kind: KindForbidden} }
func Conflict(msg string) *Error         { return &Error{Kind: KindConflict, Msg: msg} }
func BadAnswerFormat(msg string) *Error  { return &Error{Kind: KindBadAnswerFormat, Msg: msg} }
func InternalServerError() *Error        { return &Error{Kind: KindInternalServerError} }
func ServerUnreachable() *Error          { return &Error{Kind: KindServerUnreachable} }
func Other(msg string) *Error            { return &Error{Kind: KindOther, Msg: msg} }

// KindOf extracts the ErrorKind of err, or KindOther if err is not a
// *model.Error. Nil also reports KindOther; callers should check err == nil
// first.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindOther
}
