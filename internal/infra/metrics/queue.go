package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(queueWaitSeconds, queueTimeoutsTotal) }

var queueWaitSeconds = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "admission_queue_wait_seconds",
		Help:    "Time submissions spent waiting for a worker slot.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
	},
)

var queueTimeoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "admission_queue_timeouts_total",
		Help: "Submissions rejected because no slot freed before the deadline.",
	},
)

func ObserveQueueWait(seconds float64) { queueWaitSeconds.Observe(seconds) }

func IncQueueTimeout() { queueTimeoutsTotal.Inc() }

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
