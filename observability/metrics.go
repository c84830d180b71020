// Copyright 2025 The Narrator Kernel Authors
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

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the kernel's Prometheus instruments. A nil *Metrics is
// not valid; use NoopMetrics() when metrics collection is disabled.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration    prometheus.Histogram
	retryCount      prometheus.Counter
	fallbackCount   prometheus.Counter
	providerLatency *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
}

// NewMetrics registers and returns a fresh instrument set under its own
// registry, so repeated construction in tests never collides with
// prometheus's global DefaultRegisterer.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "narrator",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one Narrator tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		retryCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "narrator",
			Name:      "retry_total",
			Help:      "Number of intent-solicitation retries across all characters and ticks.",
		}),
		fallbackCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "narrator",
			Name:      "fallback_total",
			Help:      "Number of characters that exhausted retries and fell back to the static policy table.",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "narrator",
			Name:      "provider_latency_seconds",
			Help:      "Latency of LLM provider calls, by provider id.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider_id"}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "narrator",
			Name:      "provider_errors_total",
			Help:      "Provider call failures, by provider id and error kind.",
		}, []string{"provider_id", "kind"}),
	}

	registry.MustRegister(m.tickDuration, m.retryCount, m.fallbackCount, m.providerLatency, m.providerErrors)
	return m
}

// NoopMetrics returns a Metrics whose instruments are registered to a
// private, never-exposed registry: calls still succeed but nothing is
// ever scraped. Used when metrics collection is disabled.
func NoopMetrics() *Metrics {
	return NewMetrics()
}

// Registry returns the Prometheus registry backing m, for wiring into an
// HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTick records one tick's wall-clock duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.tickDuration.Observe(d.Seconds())
}

// IncRetry records one intent-solicitation retry.
func (m *Metrics) IncRetry() {
	m.retryCount.Inc()
}

// IncFallback records one character falling back to the static policy
// table after exhausting retries.
func (m *Metrics) IncFallback() {
	m.fallbackCount.Inc()
}

// ObserveProviderLatency records one provider call's latency.
func (m *Metrics) ObserveProviderLatency(providerID string, d time.Duration) {
	m.providerLatency.WithLabelValues(providerID).Observe(d.Seconds())
}

// IncProviderError records one provider call failure.
func (m *Metrics) IncProviderError(providerID, kind string) {
	m.providerErrors.WithLabelValues(providerID, kind).Inc()
}

var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// SetGlobalMetrics installs m as the process-wide instrument set reachable
// from packages built before a Kernel/Manager exists — the llms providers
// are constructed standalone by callers and have no Manager reference to
// hold, so they reach their latency/error instruments through here instead.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide instrument set, or a disabled
// one if SetGlobalMetrics was never called.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics()
	}
	return globalMetrics
}
