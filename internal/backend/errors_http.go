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

package backend

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/matteo027/remote-file-system/internal/model"
)

func newBytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}

type errorBody struct {
	Error string `json:"error"`
}

// mapStatus maps an HTTP status code to the typed error taxonomy, reading
// body for the 409 Conflict message where the server provides one.
func mapStatus(status int, body io.Reader) error {
	switch status {
	case http.StatusUnauthorized:
		return model.Unauthorized()
	case http.StatusForbidden:
		return model.Forbidden()
	case http.StatusNotFound:
		return model.NotFound("")
	case http.StatusConflict:
		var eb errorBody
		if body != nil {
			_ = json.NewDecoder(body).Decode(&eb)
		}
		return model.Conflict(eb.Error)
	case http.StatusInternalServerError:
		return model.InternalServerError()
	case http.StatusServiceUnavailable:
		return model.ServerUnreachable()
	default:
		return model.Other(http.StatusText(status))
	}
}

// mapTransportError classifies network-level failures (connection refused,
// DNS failure, timeout) as ServerUnreachable.
func mapTransportError(err error) error {
	return model.ServerUnreachable()
}
