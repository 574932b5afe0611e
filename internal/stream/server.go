package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"leadscout/internal/domain/model"
	"leadscout/internal/infra/metrics"
	"leadscout/internal/runner"
)

// Event is one JSON object on a data: line of the stream. The sequence of
// log events doubles as the client's resume offset and is mirrored on the
// SSE id: line. Sequence is a pointer so log events always carry the field
// (sequence 0 included) while terminal events omit it.
type Event struct {
	Type      string        `json:"type"` // log | complete | error
	Sequence  *int64        `json:"sequence,omitempty"`
	LogType   model.LogKind `json:"logType,omitempty"`
	Content   string        `json:"content,omitempty"`
	ToolName  string        `json:"toolName,omitempty"`
	Timestamp *time.Time    `json:"timestamp,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Config tunes the pull loop. Zero values fall back to the documented
// defaults: 100ms active, 250ms idle, 10 empty ticks before idling.
type Config struct {
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	IdleThreshold  int
}

func (c Config) withDefaults() Config {
	if c.ActiveInterval <= 0 {
		c.ActiveInterval = 100 * time.Millisecond
	}
	if c.IdleInterval <= 0 {
		c.IdleInterval = 250 * time.Millisecond
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = 10
	}
	return c
}

// Server turns registry state into long-lived, resumable event streams.
// Each open stream runs its own pull loop; many idle dashboards polling the
// same registry is the expected steady state, hence the adaptive interval.
type Server struct {
	reg *runner.Registry
	cfg Config
	log *zerolog.Logger
}

func NewServer(reg *runner.Registry, cfg Config, log *zerolog.Logger) *Server {
	return &Server{reg: reg, cfg: cfg.withDefaults(), log: log}
}

// Serve streams the job's log to w as text/event-stream, starting at
// sequence from, until the terminal event is delivered or ctx is cancelled
// (client disconnect; no terminal event is forced then).
func (s *Server) Serve(ctx context.Context, w http.ResponseWriter, jobID string, from int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	cursor := from
	if cursor < 0 {
		cursor = 0
	}
	emptyTicks := 0
	interval := s.cfg.ActiveInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		status, found := s.reg.Status(jobID)
		entries := s.reg.Snapshot(jobID, cursor)
		for _, e := range entries {
			seq := e.Sequence
			ts := e.Timestamp
			if err := writeEvent(w, e.Sequence, Event{
				Type:      "log",
				Sequence:  &seq,
				LogType:   e.Kind,
				Content:   e.Content,
				ToolName:  e.ToolName,
				Timestamp: &ts,
			}); err != nil {
				return
			}
			cursor = e.Sequence + 1
			metrics.IncStreamEvent("log")
		}
		flusher.Flush()

		if !found {
			s.terminal(w, flusher, Event{Type: "error", Message: "job not found"})
			return
		}
		if status.Terminal() {
			s.terminal(w, flusher, terminalEvent(s.reg, jobID, status))
			return
		}

		if len(entries) > 0 {
			emptyTicks = 0
		} else {
			emptyTicks++
		}
		interval = pollInterval(s.cfg, emptyTicks)

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// pollInterval escalates to the idle interval after IdleThreshold
// consecutive empty ticks, trading responsiveness for server load under
// many idle open streams.
func pollInterval(cfg Config, emptyTicks int) time.Duration {
	if emptyTicks >= cfg.IdleThreshold {
		return cfg.IdleInterval
	}
	return cfg.ActiveInterval
}

// terminal emits the single end-of-stream event. Exactly one is ever sent
// per connection, and no log events follow it.
func (s *Server) terminal(w http.ResponseWriter, flusher http.Flusher, ev Event) {
	if err := writeEvent(w, -1, ev); err != nil {
		return
	}
	metrics.IncStreamEvent(ev.Type)
	flusher.Flush()
}

func terminalEvent(reg *runner.Registry, jobID string, status model.JobStatus) Event {
	job, _ := reg.Job(jobID)
	switch status {
	case model.JobStatusCompleted:
		return Event{Type: "complete", Message: "job completed"}
	case model.JobStatusCancelled:
		return Event{Type: "complete", Message: "job cancelled"}
	default:
		msg := job.LastError
		if msg == "" {
			msg = fmt.Sprintf("job %s", status)
		}
		return Event{Type: "error", Message: msg}
	}
}

func writeEvent(w http.ResponseWriter, id int64, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if id >= 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
