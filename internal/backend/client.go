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
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matteo027/remote-file-system/internal/logger"
	"github.com/matteo027/remote-file-system/internal/metrics"
	"github.com/matteo027/remote-file-system/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// requestTimeout is the per-call deadline every backend call inherits.
const requestTimeout = 30 * time.Second

var tracer = otel.Tracer("github.com/matteo027/remote-file-system/internal/backend")

// Client is the stateless-per-call Remote Backend facade: one HTTP request
// per method, one silent re-login on a 401, HTTP status mapped to a typed
// *model.Error. It holds no cache of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
	metrics    *metrics.BackendMetrics

	mu    sync.Mutex // serializes re-login
	creds Credentials
}

func NewClient(baseURL string, log *logger.Logger, m *metrics.BackendMetrics) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar: jar,
		},
		log:     log,
		metrics: m,
	}, nil
}

// do executes req, retrying exactly once after a silent re-login if the
// server answers 401. fn decodes a successful response; it may be nil for
// calls with no response body (e.g. deletes).
func (c *Client) do(ctx context.Context, op string, newReq func(context.Context) (*http.Request, error), fn func(*http.Response) error) error {
	reqID := uuid.NewString()

	ctx, span := tracer.Start(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(attribute.String("request_id", reqID))

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	err := c.doOnce(ctx, newReq, fn)

	if model.KindOf(err) == model.KindUnauthorized {
		span.AddEvent("retrying after reauthentication")
		if reErr := c.reauthenticate(ctx); reErr == nil {
			err = c.doOnce(ctx, newReq, fn)
		}
	}

	latency := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveRequest(op, statusLabel(err), latency)
	}
	if c.log != nil {
		c.log.Debugf("backend %s request_id=%s status=%s latency=%s", op, reqID, statusLabel(err), latency)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Client) doOnce(ctx context.Context, newReq func(context.Context) (*http.Request, error), fn func(*http.Response) error) error {
	req, err := newReq(ctx)
	if err != nil {
		return model.Other(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, resp.Body)
	}

	if fn != nil {
		return fn(resp)
	}
	return nil
}

func statusLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return fmt.Sprintf("%d", int(model.KindOf(err)))
}

func (c *Client) url(format string, args ...interface{}) string {
	return c.baseURL + fmt.Sprintf(format, args...)
}

func decodeEntry(resp *http.Response) (model.Entry, error) {
	var w wireEntry
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return model.Entry{}, model.BadAnswerFormat(err.Error())
	}
	return entryFromWire(w), nil
}

func (c *Client) ListDir(ctx context.Context, ino uint64) ([]model.Entry, error) {
	var entries []model.Entry
	err := c.do(ctx, "list_dir", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/directories/%d", ino), nil)
	}, func(resp *http.Response) error {
		var wireEntries []wireEntry
		if err := json.NewDecoder(resp.Body).Decode(&wireEntries); err != nil {
			return model.BadAnswerFormat(err.Error())
		}
		entries = make([]model.Entry, len(wireEntries))
		for i, w := range wireEntries {
			entries[i] = entryFromWire(w)
		}
		return nil
	})
	return entries, err
}

func (c *Client) GetAttr(ctx context.Context, ino uint64) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "get_attr", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/files/attributes/%d", ino), nil)
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

// GetAttrIfModifiedSince has no dedicated server endpoint: it fetches the
// attributes unconditionally and applies the strictly-greater mtime
// comparison client-side, so callers still get the "unchanged" answer the
// contract promises.
func (c *Client) GetAttrIfModifiedSince(ctx context.Context, ino uint64, since time.Time) (model.Entry, bool, error) {
	entry, err := c.GetAttr(ctx, ino)
	if err != nil {
		return model.Entry{}, false, err
	}
	if !entry.Mtime.After(since) {
		return model.Entry{}, false, nil
	}
	return entry, true, nil
}

func (c *Client) Lookup(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "lookup", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"name": {name}}
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/directories/%d?%s", parent, q.Encode()), nil)
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) CreateFile(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "create_file", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"name": {name}}
		return http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/files/%d?%s", parent, q.Encode()), nil)
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) CreateDir(ctx context.Context, parent uint64, name string) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "create_dir", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"name": {name}}
		return http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/directories/%d?%s", parent, q.Encode()), nil)
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) DeleteFile(ctx context.Context, parent uint64, name string) error {
	return c.do(ctx, "delete_file", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"name": {name}}
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/api/files/%d?%s", parent, q.Encode()), nil)
	}, nil)
}

func (c *Client) DeleteDir(ctx context.Context, parent uint64, name string) error {
	return c.do(ctx, "delete_dir", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"name": {name}}
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.url("/api/directories/%d?%s", parent, q.Encode()), nil)
	}, nil)
}

func (c *Client) ReadChunk(ctx context.Context, ino uint64, offset, size uint64) ([]byte, error) {
	var data []byte
	err := c.do(ctx, "read_chunk", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{
			"offset": {strconv.FormatUint(offset, 10)},
			"size":   {strconv.FormatUint(size, 10)},
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/files/%d?%s", ino, q.Encode()), nil)
	}, func(resp *http.Response) error {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return model.BadAnswerFormat(err.Error())
		}
		data = b
		return nil
	})
	return data, err
}

type writeChunkResponse struct {
	Bytes uint64 `json:"bytes"`
}

func (c *Client) WriteChunk(ctx context.Context, ino uint64, offset uint64, data []byte) (uint64, error) {
	var written uint64
	err := c.do(ctx, "write_chunk", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.url("/api/files/%d", ino), newBytesReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Chunk-Offset", strconv.FormatUint(offset, 10))
		req.ContentLength = int64(len(data))
		return req, nil
	}, func(resp *http.Response) error {
		var w writeChunkResponse
		if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
			return model.BadAnswerFormat(err.Error())
		}
		written = w.Bytes
		return nil
	})
	return written, err
}

// ReadStream returns a lazy, non-restartable byte sequence: closing it
// cancels the underlying request.
func (c *Client) ReadStream(ctx context.Context, ino uint64, offset uint64) (io.ReadCloser, error) {
	q := url.Values{"offset": {strconv.FormatUint(offset, 10)}}
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.url("/api/files/stream/%d?%s", ino, q.Encode()), nil)
	if err != nil {
		cancel()
		return nil, model.Other(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, mapTransportError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		if reErr := c.reauthenticate(ctx); reErr != nil {
			cancel()
			return nil, model.Unauthorized()
		}
		resp, err = c.httpClient.Do(req.Clone(streamCtx))
		if err != nil {
			cancel()
			return nil, mapTransportError(err)
		}
	}

	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		err := mapStatus(resp.StatusCode, resp.Body)
		cancel()
		return nil, err
	}

	return &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

func (c *Client) WriteStream(ctx context.Context, ino uint64, offset uint64, r io.Reader) error {
	return c.do(ctx, "write_stream", func(ctx context.Context) (*http.Request, error) {
		q := url.Values{"offset": {strconv.FormatUint(offset, 10)}}
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/files/stream-write/%d?%s", ino, q.Encode()), r)
	}, nil)
}

type renameRequest struct {
	NewPath string `json:"new_path"`
}

func (c *Client) Rename(ctx context.Context, oldParent uint64, oldName string, newParent uint64, newName string) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "rename", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(renameRequest{NewPath: fmt.Sprintf("%d/%s", newParent, newName)})
		if err != nil {
			return nil, err
		}
		q := url.Values{"name": {oldName}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.url("/api/files/%d?%s", oldParent, q.Encode()), newBytesReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) SetAttr(ctx context.Context, ino uint64, req model.SetAttrRequest) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "set_attr", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(setAttrToWire(req))
		if err != nil {
			return nil, err
		}
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.url("/api/files/attributes/%d", ino), newBytesReader(body))
		if err != nil {
			return nil, err
		}
		hreq.Header.Set("Content-Type", "application/json")
		return hreq, nil
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

type linkRequest struct {
	Target string `json:"target"`
}

func (c *Client) Link(ctx context.Context, parent uint64, name string, target uint64) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "link", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(linkRequest{Target: strconv.FormatUint(target, 10)})
		if err != nil {
			return nil, err
		}
		q := url.Values{"name": {name}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/links/%d?%s", parent, q.Encode()), newBytesReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) Symlink(ctx context.Context, parent uint64, name string, target string) (model.Entry, error) {
	var entry model.Entry
	err := c.do(ctx, "symlink", func(ctx context.Context) (*http.Request, error) {
		body, err := json.Marshal(linkRequest{Target: target})
		if err != nil {
			return nil, err
		}
		q := url.Values{"name": {name}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/symlinks/%d?%s", parent, q.Encode()), newBytesReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, func(resp *http.Response) error {
		e, err := decodeEntry(resp)
		entry = e
		return err
	})
	return entry, err
}

func (c *Client) Readlink(ctx context.Context, ino uint64) (string, error) {
	var target string
	err := c.do(ctx, "readlink", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/symlinks/%d", ino), nil)
	}, func(resp *http.Response) error {
		var body struct {
			Target string `json:"target"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return model.BadAnswerFormat(err.Error())
		}
		target = body.Target
		return nil
	})
	return target, err
}

func (c *Client) GetSize(ctx context.Context) (total, free uint64, err error) {
	err = c.do(ctx, "get_size", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/volume"), nil)
	}, func(resp *http.Response) error {
		var body struct {
			Total uint64 `json:"total"`
			Free  uint64 `json:"free"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&body); decErr != nil {
			return model.BadAnswerFormat(decErr.Error())
		}
		total, free = body.Total, body.Free
		return nil
	})
	return
}
