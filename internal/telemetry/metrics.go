// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zwavectl"

var (
	Registry = prometheus.NewRegistry()

	// ---- Offline detection ----
	OfflineQueueSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "queue_size",
			Help:      "Nodes probed in the most recent offline detection cycle.",
		},
	)

	OfflineNextCheckDelay = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "next_check_delay_seconds",
			Help:      "Delay before the next offline detection cycle.",
		},
	)

	OfflineMinimumTimeout = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "minimum_timeout_seconds",
			Help:      "Adaptive minimum silence before a node is considered for probing.",
		},
	)

	OfflineCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one offline detection cycle including probe spacing.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "offline",
			Name:      "probes_total",
			Help:      "Liveness probes sent, by result.",
		},
		[]string{"result"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_transitions_total",
			Help:      "Node online/offline transitions.",
		},
		[]string{"state"},
	)

	NodesOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Known nodes by online state.",
		},
		[]string{"state"},
	)

	// ---- Transport ----
	FramesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "frames_total",
			Help:      "Serial API frames, by direction and kind.",
		},
		[]string{"direction", "kind"},
	)

	DecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "serial",
			Name:      "decode_errors_total",
			Help:      "Inbound bytes rejected by the frame decoder.",
		},
	)

	// ---- Process / build info ----
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		},
		[]string{"version"},
	)

	startTime = time.Now()
	uptime    = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds.",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)
)

func init() {
	Registry.MustRegister(
		OfflineQueueSize, OfflineNextCheckDelay, OfflineMinimumTimeout, OfflineCycleDuration,
		ProbesTotal, TransitionsTotal, NodesOnline,
		FramesTotal, DecodeErrorsTotal,
		buildInfo, uptime,
	)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}

// SetNodeCounts publishes how many nodes are online and offline.
func SetNodeCounts(online, offline int) {
	NodesOnline.WithLabelValues("online").Set(float64(online))
	NodesOnline.WithLabelValues("offline").Set(float64(offline))
}

// ObserveTransition counts one online/offline transition.
func ObserveTransition(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	TransitionsTotal.WithLabelValues(state).Inc()
}
