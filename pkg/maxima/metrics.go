// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metricsNamespace prefixes every instrument exported by this package.
const metricsNamespace = "maxbridge"

// bridgeMetrics holds the package's Prometheus instruments. They live on
// the default registry and are shared by every Server in the process.
type bridgeMetrics struct {
	connectionsTotal  prometheus.Counter
	commandsTotal     prometheus.Counter
	sendsTotal        prometheus.Counter
	engineLaunches    prometheus.Counter
	activeSessions    prometheus.Gauge
	queueDepth        prometheus.Gauge
	engineReady       prometheus.Gauge
	readinessOutcomes *prometheus.CounterVec
	readinessSeconds  prometheus.Histogram
}

var (
	metricsOnce sync.Once
	pkgMetrics  *bridgeMetrics
)

// serverMetrics returns the process-wide instruments, registering them on
// first use.
func serverMetrics() *bridgeMetrics {
	metricsOnce.Do(func() {
		pkgMetrics = &bridgeMetrics{
			connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "connections_total",
				Help:      "Connections accepted by the bridge listener.",
			}),
			commandsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "commands_total",
				Help:      "Command frames dispatched to the handler.",
			}),
			sendsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "send_lines_total",
				Help:      "Lines submitted to the engine through Send.",
			}),
			engineLaunches: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "engine_launches_total",
				Help:      "Engine processes launched.",
			}),
			activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "active_sessions",
				Help:      "Sessions currently connected.",
			}),
			queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "queue_depth",
				Help:      "Envelopes waiting in the response queue.",
			}),
			engineReady: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "engine_ready",
				Help:      "Whether the engine has completed its readiness handshake.",
			}),
			readinessOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "readiness_outcomes_total",
				Help:      "Readiness handshakes by outcome.",
			}, []string{"outcome"}),
			readinessSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "readiness_duration_seconds",
				Help:      "Time from engine launch to the ready marker.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
	})
	return pkgMetrics
}
