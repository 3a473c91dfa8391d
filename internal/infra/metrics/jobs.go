package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsProcessedTotal, jobStageDurationSeconds, jobsInFlight)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_jobs_processed_total",
		Help: "Total number of analysis jobs processed, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobStageDurationSeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "analysis_job_stage_duration_seconds",
		Help:    "Duration of individual pipeline stages.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"stage"},
)

var jobsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "analysis_jobs_in_flight",
		Help: "Number of analysis jobs currently executing.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveStageDuration(stage string, seconds float64) {
	jobStageDurationSeconds.WithLabelValues(norm(stage)).Observe(seconds)
}

func JobStarted()  { jobsInFlight.Inc() }
func JobFinished() { jobsInFlight.Dec() }
