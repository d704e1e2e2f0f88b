// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the broker's Prometheus instruments. A nil *Metrics
// is valid and records nothing, so the registry never branches on
// whether metrics are configured.
type Metrics struct {
	registeredServices prometheus.Gauge
	pendingRequests    prometheus.Gauge
	operations         *prometheus.CounterVec
	events             *prometheus.CounterVec
}

// NewMetrics registers the broker instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registeredServices: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "switchboard",
			Subsystem: "broker",
			Name:      "registered_services",
			Help:      "Number of services with a live provider.",
		}),
		pendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "switchboard",
			Subsystem: "broker",
			Name:      "pending_requests",
			Help:      "Connection requests queued behind unregistered services.",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "broker",
			Name:      "operations_total",
			Help:      "Broker operations by type and outcome.",
		}, []string{"op", "outcome"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switchboard",
			Subsystem: "broker",
			Name:      "events_total",
			Help:      "Service lifecycle events broadcast, by type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) operation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) serviceRegistered() {
	if m == nil {
		return
	}
	m.registeredServices.Inc()
}

func (m *Metrics) serviceUnregistered() {
	if m == nil {
		return
	}
	m.registeredServices.Dec()
}

func (m *Metrics) requestsEnqueued(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Add(float64(n))
}

func (m *Metrics) requestsDequeued(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Sub(float64(n))
}

func (m *Metrics) eventBroadcast(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
