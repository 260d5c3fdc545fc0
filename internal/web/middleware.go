// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Requests counts HTTP requests by route template, method and status.
var Requests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_http_requests_total",
		Help: "Total number of HTTP requests by route, method and status",
	},
	[]string{"route", "method", "status"},
)

// RequestDuration observes request latency by route template.
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gatehouse_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"route"},
)

// RegisterMetrics registers web metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Requests)
	reg.MustRegister(RequestDuration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// accessLog logs and counts every request routed by the router.
func accessLog(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			route := "unmatched"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			elapsed := time.Since(start)
			Requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
			RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"remote", clientIP(r))
		})
	}
}
