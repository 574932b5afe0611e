package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsTotal, jobDurationSeconds) }

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "research_jobs_total",
		Help: "Research/scoring jobs by terminal status.",
	},
	[]string{"status"}, // completed, failed, timed_out, cancelled
)

var jobDurationSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "research_job_duration_seconds",
		Help:    "Wall-clock duration from admission to terminal transition.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
)

func IncJob(status string) {
	jobsTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveJobDuration(seconds float64) {
	jobDurationSeconds.Observe(seconds)
}
