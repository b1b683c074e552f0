// Package telemetry holds the Prometheus metrics and OpenTelemetry setup
// shared by the discovery, DIAL and remote packages.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vestel"

var (
	// DiscoveryResponses counts SSDP responses by outcome.
	DiscoveryResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "responses_total",
			Help:      "SSDP responses received, by outcome",
		},
		[]string{"outcome"},
	)

	// DevicesDiscovered counts televisions emitted by discovery.
	DevicesDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "devices_total",
			Help:      "Televisions discovered",
		},
	)

	// AppProbes counts DIAL application probes by app and result.
	AppProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dial",
			Name:      "app_probes_total",
			Help:      "DIAL application probes, by app and result",
		},
		[]string{"app", "result"},
	)

	// RemoteKeys counts SmartCenter key codes by outcome (sent, failed, dropped).
	RemoteKeys = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dial",
			Name:      "remote_keys_total",
			Help:      "SmartCenter remote key codes, by outcome",
		},
		[]string{"outcome"},
	)

	// SocketSessions counts raw socket sessions by port and result.
	SocketSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "sessions_total",
			Help:      "Raw socket command sessions, by port and result",
		},
		[]string{"port", "result"},
	)

	once sync.Once
)

// Collectors returns every metric of this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		DiscoveryResponses,
		DevicesDiscovered,
		AppProbes,
		RemoteKeys,
		SocketSessions,
	}
}

// InitMetrics registers all metrics with the default Prometheus registry.
// It is idempotent.
func InitMetrics() {
	once.Do(func() {
		for _, c := range Collectors() {
			_ = prometheus.DefaultRegisterer.Register(c)
		}
	})
}
