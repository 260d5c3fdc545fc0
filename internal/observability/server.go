// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package observability serves the gatehouse metrics and health endpoints on
// a listener separate from the browser-facing one.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"
)

// ReadinessTimeout bounds one readiness check.
const ReadinessTimeout = 2 * time.Second

// ReadinessChecker reports why the gateway cannot take traffic, or nil when
// it can. A typical check confirms the HTTP listener is up and pings the
// session store.
type ReadinessChecker func(ctx context.Context) error

// MetricsRegistrar registers a package's collectors, for example
// auth.RegisterMetrics.
type MetricsRegistrar func(prometheus.Registerer)

// Metrics contains process-level gatehouse metrics.
type Metrics struct {
	BuildInfo       *prometheus.GaugeVec
	SessionsSwept   prometheus.Counter
	Ready           prometheus.Gauge
	ReadinessFailed prometheus.Counter
}

// NewMetrics creates and registers the process-level metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gatehouse_build_info",
				Help: "Build information; the value is always 1",
			},
			[]string{"version", "commit"},
		),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_sessions_swept_total",
			Help: "Total number of expired web sessions removed by the sweeper",
		}),
		Ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatehouse_ready",
			Help: "1 when the last readiness check passed, 0 otherwise",
		}),
		ReadinessFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_readiness_failures_total",
			Help: "Total number of failed readiness checks",
		}),
	}
	reg.MustRegister(m.BuildInfo, m.SessionsSwept, m.Ready, m.ReadinessFailed)
	return m
}

type healthStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Server exposes /metrics, /healthz/liveness and /healthz/readiness.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	ready    ReadinessChecker

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// NewServer creates a server for addr ("127.0.0.1:9100", ":9100", ...).
// A nil ready always reports ready. Each registrar runs once against the
// server's private registry.
func NewServer(addr string, ready ReadinessChecker, registrars ...MetricsRegistrar) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)
	for _, register := range registrars {
		register(registry)
	}
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}
	return &Server{addr: addr, registry: registry, metrics: metrics, ready: ready}
}

// Metrics returns the process-level metrics.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler routes the observability endpoints. It is what Start serves.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})).
		Methods(http.MethodGet)
	r.HandleFunc("/healthz/liveness", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/healthz/readiness", s.handleReadiness).Methods(http.MethodGet)
	return r
}

// Start listens and serves in the background. The returned channel receives
// a serve failure and is closed once serving ends.
func (s *Server) Start() (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.http != nil {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.listener, s.http = listener, srv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

// Stop shuts the server down. Stopping a server that is not running is a
// no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.http = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return oops.Code("OBSERVABILITY_STOP_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, healthStatus{Status: "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ReadinessTimeout)
	defer cancel()

	if err := s.ready(ctx); err != nil {
		s.metrics.Ready.Set(0)
		s.metrics.ReadinessFailed.Inc()
		slog.WarnContext(ctx, "readiness check failed", "error", err)
		writeStatus(w, http.StatusServiceUnavailable, healthStatus{
			Status: "not ready",
			Reason: oops.GetPublic(err, "unavailable"),
		})
		return
	}
	s.metrics.Ready.Set(1)
	writeStatus(w, http.StatusOK, healthStatus{Status: "ok"})
}

func writeStatus(w http.ResponseWriter, code int, body healthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // client may have gone away
}
