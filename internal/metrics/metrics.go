// Package metrics holds the Prometheus collectors for vehicle lookups.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// LookupsTotal counts completed registry lookups by resulting status
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_lookup_requests_total",
			Help: "Total number of registry lookups by outcome.",
		},
		[]string{"status"}, // status: success/not_found/auth_error/connection_error/error
	)

	// LookupDuration records how long each registry call took
	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vehicle_lookup_duration_seconds",
			Help:    "Latency of registry lookups.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// DispatchTotal counts lookups handed to the refresh worker, by trigger
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vehicle_lookup_dispatch_total",
			Help: "Total number of lookup dispatches by trigger.",
		},
		[]string{"trigger"}, // trigger: debounce/fallback/immediate/direct/startup/button
	)

	// Status is 1 for the coordinator's current status and 0 for the rest
	Status = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vehicle_lookup_status",
			Help: "Current lookup status (1 for the active status).",
		},
		[]string{"status"},
	)

	// HAConnected tracks the Home Assistant WebSocket connection (1=connected)
	HAConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vehicle_lookup_ha_connected",
			Help: "Home Assistant WebSocket connection state (1=connected, 0=disconnected).",
		},
	)

	// Registry is the registry served on /metrics
	Registry = prometheus.NewRegistry()
)

func init() {
	Registry.MustRegister(LookupsTotal)
	Registry.MustRegister(LookupDuration)
	Registry.MustRegister(DispatchTotal)
	Registry.MustRegister(Status)
	Registry.MustRegister(HAConnected)
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// SetStatus marks current as the active status among all.
func SetStatus(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		Status.WithLabelValues(s).Set(v)
	}
}
