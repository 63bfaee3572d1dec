/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uvhttp

import (
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// serverMetrics is the Prometheus view of one Server. Each Server
	// owns its registry, so embedding several servers in one process
	// never collides on collector names.
	serverMetrics struct {
		registry *prometheus.Registry

		requestsTotal    prometheus.Counter
		errorsTotal      *prometheus.CounterVec
		rateLimitedTotal prometheus.Counter
		upgradesTotal    prometheus.Counter
	}
)

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uvhttp",
			Name:      "requests_total",
			Help:      "Requests reaching the handling stage.",
		}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uvhttp",
			Name:      "errors_total",
			// Only request parse failures are observed here; the other
			// error kinds are counted in the Server's Telemetry.
			Help:      "Request parse failures by error kind.",
		}, []string{"kind"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uvhttp",
			Name:      "rate_limited_total",
			Help:      "Requests answered 429 by the rate limiter.",
		}),
		upgradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uvhttp",
			Name:      "upgrades_total",
			Help:      "Connections handed off to another protocol.",
		}),
	}
	m.registry.MustRegister(m.requestsTotal, m.errorsTotal, m.rateLimitedTotal, m.upgradesTotal)
	return m
}

func (m *serverMetrics) observeRequest() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

func (m *serverMetrics) observeError(kind ErrorKind) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(kind.String()).Inc()
}

func (m *serverMetrics) observeRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

func (m *serverMetrics) observeUpgrade() {
	if m == nil {
		return
	}
	m.upgradesTotal.Inc()
}
