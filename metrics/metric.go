package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	ReplicaSelected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "FlowPod",
			Subsystem: "pod",
			Name:      "replica_selected_total",
			Help:      "requests dispatched per replica",
		},
		[]string{"pod", "replica"},
	)

	RollingUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "FlowPod",
			Subsystem: "pod",
			Name:      "rolling_update_duration_seconds",
			Help:      "wall time of whole-pod rolling updates",
		},
		[]string{"pod"},
	)

	DumpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "FlowPod",
			Subsystem: "snapshot",
			Name:      "dump_duration_seconds",
			Help:      "wall time of snapshot dumps",
		},
		[]string{"pod"},
	)

	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "FlowPod",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "requests routed through the gateway",
		},
		[]string{"type"},
	)
)

func init() {
	Registry.MustRegister(
		ReplicaSelected,
		RollingUpdateDuration,
		DumpDuration,
		GatewayRequests,
	)
}
