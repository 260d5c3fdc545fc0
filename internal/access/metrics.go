// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package access

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Denials counts denied checks by check name and reason.
var Denials = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gatehouse_access_denials_total",
		Help: "Total number of denied access checks by check and reason",
	},
	[]string{"check", "reason"},
)

// RegisterMetrics registers access metrics with the given registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Denials)
}

// RecordDenial increments the denial counter.
func RecordDenial(check, reason string) {
	Denials.WithLabelValues(check, reason).Inc()
}
