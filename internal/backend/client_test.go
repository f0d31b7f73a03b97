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
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matteo027/remote-file-system/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntryJSON(ino uint64, path string, size uint64) string {
	return `{"ino":` + jsonUint(ino) + `,"path":"` + path + `","owner":1000,"group":null,` +
		`"type":0,"permissions":420,"size":` + jsonUint(size) + `,"nlinks":1,` +
		`"atime":1700000000000,"mtime":1700000001000,"ctime":1700000002000,"btime":1699999999000}`
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, nil, nil)
	require.NoError(t, err)
	return c, server
}

func TestLoginStoresSessionCookie(t *testing.T) {
	var loginBody loginRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&loginBody))
		http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "s3ss10n"})
	})
	mux.HandleFunc("/api/files/attributes/7", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("connect.sid")
		if err != nil || cookie.Value != "s3ss10n" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(testEntryJSON(7, "/a", 3)))
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, Credentials{Username: "alice", Password: "pw"}))
	assert.Equal(t, "alice", loginBody.Username)

	e, err := c.GetAttr(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), e.Ino)
}

func TestUnauthorizedTriggersSingleRelogin(t *testing.T) {
	logins := 0
	attempts := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "fresh"})
	})
	mux.HandleFunc("/api/files/attributes/1", func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(testEntryJSON(1, "/", 0)))
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, Credentials{Username: "u", Password: "p"}))

	e, err := c.GetAttr(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), e.Ino)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, logins) // startup login + one silent re-login
}

func TestSecondUnauthorizedSurfaces(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: "v"})
	})
	mux.HandleFunc("/api/files/attributes/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, _ := newTestClient(t, mux)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, Credentials{Username: "u", Password: "p"}))

	_, err := c.GetAttr(ctx, 1)
	assert.Equal(t, model.KindUnauthorized, model.KindOf(err))
}

func TestWriteChunkSendsOffsetHeader(t *testing.T) {
	var gotOffset string
	var gotBody []byte

	mux := http.NewServeMux()
	mux.HandleFunc("/api/files/42", func(w http.ResponseWriter, r *http.Request) {
		gotOffset = r.Header.Get("X-Chunk-Offset")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"bytes":5}`))
	})

	c, _ := newTestClient(t, mux)

	n, err := c.WriteChunk(context.Background(), 42, 1024, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), n)
	assert.Equal(t, "1024", gotOffset)
	assert.Equal(t, []byte("hello"), gotBody)
}

func TestReadChunkQueryParameters(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files/9", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "16384", r.URL.Query().Get("offset"))
		assert.Equal(t, "16384", r.URL.Query().Get("size"))
		_, _ = w.Write([]byte("raw bytes"))
	})

	c, _ := newTestClient(t, mux)

	data, err := c.ReadChunk(context.Background(), 9, 16384, 16384)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw bytes"), data)
}

func TestReadStreamDeliversChunks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files/stream/5", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("part one, "))
		flusher.Flush()
		_, _ = w.Write([]byte("part two"))
	})

	c, _ := newTestClient(t, mux)

	rc, err := c.ReadStream(context.Background(), 5, 100)
	require.NoError(t, err)
	defer rc.Close()

	var sb strings.Builder
	buf := make([]byte, 7)
	for {
		n, err := rc.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	assert.Equal(t, "part one, part two", sb.String())
}

func TestConflictCarriesServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/files/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"name already taken"}`))
	})

	c, _ := newTestClient(t, mux)

	_, err := c.CreateFile(context.Background(), 1, "dup")
	require.Error(t, err)
	var be *model.Error
	require.ErrorAs(t, err, &be)
	assert.Equal(t, model.KindConflict, be.Kind)
	assert.Equal(t, "name already taken", be.Msg)
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   model.ErrorKind
	}{
		{http.StatusUnauthorized, model.KindUnauthorized},
		{http.StatusForbidden, model.KindForbidden},
		{http.StatusNotFound, model.KindNotFound},
		{http.StatusConflict, model.KindConflict},
		{http.StatusInternalServerError, model.KindInternalServerError},
		{http.StatusServiceUnavailable, model.KindServerUnreachable},
		{http.StatusTeapot, model.KindOther},
	}

	for _, tc := range cases {
		err := mapStatus(tc.status, strings.NewReader("{}"))
		assert.Equal(t, tc.kind, model.KindOf(err), "status %d", tc.status)
	}
}

func TestTransportErrorIsServerUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	c, err := NewClient(server.URL, nil, nil)
	require.NoError(t, err)
	server.Close()

	_, gerr := c.GetAttr(context.Background(), 1)
	assert.Equal(t, model.KindServerUnreachable, model.KindOf(gerr))
}

func TestEntryFromWireDefaults(t *testing.T) {
	w := wireEntry{
		Ino:         12,
		Path:        "/docs/report.txt",
		Owner:       501,
		Group:       nil,
		Type:        0,
		Permissions: 0o644,
		Size:        10,
		Nlinks:      1,
		Mtime:       1700000000000,
	}

	e := entryFromWire(w)
	assert.Equal(t, "report.txt", e.Name)
	assert.Equal(t, uint32(501), e.GID, "nil group defaults to owner")
	assert.Equal(t, model.KindFile, e.Kind)
	assert.Equal(t, int64(1700000000000), e.Mtime.UnixMilli())

	gid := uint32(20)
	w.Group = &gid
	w.Type = 1
	e = entryFromWire(w)
	assert.Equal(t, uint32(20), e.GID)
	assert.Equal(t, model.KindDirectory, e.Kind)
}
