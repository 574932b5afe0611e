package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(openStreams, streamEventsTotal) }

var openStreams = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "log_streams_open",
		Help: "Currently open log stream connections.",
	},
)

var streamEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "log_stream_events_total",
		Help: "Stream events delivered to clients, by event type.",
	},
	[]string{"type"}, // log, complete, error
)

func StreamOpened() { openStreams.Inc() }
func StreamClosed() { openStreams.Dec() }

func IncStreamEvent(eventType string) {
	streamEventsTotal.WithLabelValues(norm(eventType)).Inc()
}
