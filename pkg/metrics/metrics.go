// Copyright 2022 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the Prometheus collectors ktail updates while it
// tails logs and events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of collectors ktail reports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	LogStreams    prometheus.Gauge
	LogBatches    prometheus.Counter
	LogLines      prometheus.Counter
	ErrorLines    prometheus.Counter
	ClusterEvents *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LogStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ktail_log_streams",
			Help: "Number of pod log streams currently open.",
		}),
		LogBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "ktail_log_batches_total",
			Help: "Total non-empty log windows emitted.",
		}),
		LogLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "ktail_log_lines_total",
			Help: "Total log lines read from pod log streams.",
		}),
		ErrorLines: factory.NewCounter(prometheus.CounterOpts{
			Name: "ktail_error_lines_total",
			Help: "Total log lines matching the error pattern.",
		}),
		ClusterEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ktail_cluster_events_total",
				Help: "Total cluster events reported, by event type.",
			},
			[]string{"type"},
		),
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.LogStreams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.LogStreams.Dec()
}

// BatchEmitted records a window of n lines.
func (m *Metrics) BatchEmitted(n int) {
	if m == nil {
		return
	}
	m.LogBatches.Inc()
	m.LogLines.Add(float64(n))
}

func (m *Metrics) ErrorsFound(n int) {
	if m == nil || n == 0 {
		return
	}
	m.ErrorLines.Add(float64(n))
}

func (m *Metrics) EventReported(eventType string) {
	if m == nil {
		return
	}
	m.ClusterEvents.WithLabelValues(eventType).Inc()
}
