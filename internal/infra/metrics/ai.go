package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(aiCallsLatencyMs, aiCallsTotal)
}

var aiCallsLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ai_calls_latency_ms",
		Help:    "AI call latency distribution in milliseconds.",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
	},
	[]string{"provider", "operation", "success"},
)

var aiCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ai_calls_total",
		Help: "AI calls by provider, operation (classify/summarize/embed) and outcome.",
	},
	[]string{"provider", "operation", "success"},
)

func ObserveAICall(provider, operation string, latencyMs int, success bool) {
	ok := strconv.FormatBool(success)
	aiCallsTotal.WithLabelValues(norm(provider), norm(operation), ok).Inc()
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(operation), ok).Observe(float64(latencyMs))
}
