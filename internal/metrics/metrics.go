// Package metrics exposes the gateway's Prometheus instrumentation:
// healthy-server gauges per capability, request counters, and a tool-call
// latency histogram, registered against a private registry so /metrics
// never accidentally picks up Go-runtime collectors the operator didn't ask
// for.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every gateway-level collector.
type Metrics struct {
	Registry *prometheus.Registry

	HealthyServers  *prometheus.GaugeVec
	RequestsTotal   *prometheus.CounterVec
	ToolCallSeconds *prometheus.HistogramVec
	RAGRetrievals   *prometheus.CounterVec
}

// New builds and registers every collector against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HealthyServers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Name:      "healthy_servers",
			Help:      "Number of servers currently marked healthy, by capability.",
		}, []string{"capability"}),

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "requests_total",
			Help:      "Total inbound requests handled, by route and outcome.",
		}, []string{"route", "outcome"}),

		ToolCallSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gateway",
			Name:      "tool_call_duration_seconds",
			Help:      "Latency of MCP tool-call invocations, by tool name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		RAGRetrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Name:      "rag_retrievals_total",
			Help:      "Total RAG retrieval attempts, by outcome.",
		}, []string{"outcome"}),
	}
}

// SetHealthyServers records the current healthy-server count for one
// capability, called by the health sweeper after each pass.
func (m *Metrics) SetHealthyServers(capability string, count int) {
	m.HealthyServers.WithLabelValues(capability).Set(float64(count))
}

// ObserveRequest increments the request counter for one route/outcome pair.
func (m *Metrics) ObserveRequest(route, outcome string) {
	m.RequestsTotal.WithLabelValues(route, outcome).Inc()
}

// ObserveToolCallSeconds records one tool-call's wall-clock duration.
func (m *Metrics) ObserveToolCallSeconds(tool string, seconds float64) {
	m.ToolCallSeconds.WithLabelValues(tool).Observe(seconds)
}

// ObserveRAGRetrieval increments the RAG retrieval counter for one outcome.
func (m *Metrics) ObserveRAGRetrieval(outcome string) {
	m.RAGRetrievals.WithLabelValues(outcome).Inc()
}
