package workflow

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process-wide engine metrics, following the teacher's pkg/metrics
// convention of package-level collectors registered once at init and
// exposed through a Handler() the process mounts under /metrics.
var (
	InstancesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "flowengine_instances_active",
			Help: "Number of workflow instances currently being traversed",
		},
	)

	InstancesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowengine_instances_completed_total",
			Help: "Total workflow instances completed, by outcome (success, failed, cancelled)",
		},
		[]string{"outcome"},
	)

	NodesActivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowengine_nodes_activated_total",
			Help: "Total nodes activated, by node kind",
		},
		[]string{"kind"},
	)

	NodesCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowengine_nodes_completed_total",
			Help: "Total nodes completed, by node kind",
		},
		[]string{"kind"},
	)

	GatewayDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowengine_gateway_decisions_total",
			Help: "Total gateway fork decisions, by gateway kind and outgoing flow",
		},
		[]string{"kind", "flow"},
	)
)

func init() {
	prometheus.MustRegister(InstancesActive)
	prometheus.MustRegister(InstancesCompletedTotal)
	prometheus.MustRegister(NodesActivatedTotal)
	prometheus.MustRegister(NodesCompletedTotal)
	prometheus.MustRegister(GatewayDecisionsTotal)
}

// MetricsHandler returns the Prometheus HTTP handler for the process's
// /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
