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

// Package metrics exposes Prometheus instrumentation for the backend client
// and cache layer, and the /metrics + /healthz HTTP endpoints the CLI binds
// when --metrics-address is set.
package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
)

// BackendMetrics instruments the RemoteBackend calls made by the raw HTTP
// client; ReadStream requests are not counted.
type BackendMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	factory := promauto.With(reg)
	return &BackendMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotefs_backend_requests_total",
			Help: "Total backend RPCs by operation and outcome.",
		}, []string{"op", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "remotefs_backend_request_duration_seconds",
			Help:    "Backend RPC latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *BackendMetrics) ObserveRequest(op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, status).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

// CacheMetrics instruments the three LRU tiers' hit/miss/eviction counts.
type CacheMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	factory := promauto.With(reg)
	return &CacheMetrics{
		hits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotefs_cache_hits_total",
			Help: "Cache hits by tier.",
		}, []string{"tier"}),
		misses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotefs_cache_misses_total",
			Help: "Cache misses by tier.",
		}, []string{"tier"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotefs_cache_evictions_total",
			Help: "Cache evictions by tier.",
		}, []string{"tier"}),
	}
}

func (m *CacheMetrics) Hit(tier string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(tier).Inc()
}

func (m *CacheMetrics) Miss(tier string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(tier).Inc()
}

func (m *CacheMetrics) Evict(tier string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(tier).Add(float64(n))
}

// Serve starts a blocking HTTP server exposing /metrics and /healthz on
// addr. Intended to run in its own goroutine from cmd. The listener is
// capped at a small number of concurrent scrapers so a misbehaving collector
// cannot starve the filesystem of file descriptors.
func Serve(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := &http.Server{Handler: mux}
	return server.Serve(netutil.LimitListener(lis, 16))
}
