package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ConnState is the client connection state, surfaced through OnStateChange
// so the dashboard can show a connectivity indicator.
type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateReconnecting ConnState = "reconnecting"
	StateDisconnected ConnState = "disconnected"
	StateError        ConnState = "error"
)

// Callbacks receive stream events and state transitions. Both are invoked
// from the Connect goroutine, never concurrently.
type Callbacks struct {
	OnEvent       func(Event)
	OnStateChange func(ConnState)
}

// ClientConfig tunes reconnection. Zero values take the documented
// defaults: base 1s, multiplier 2, max delay 16s, 5 retries.
type ClientConfig struct {
	BaseURL    string // e.g. http://localhost:8080
	Token      string // optional bearer/session token
	HTTPClient *http.Client

	BackoffBase time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	MaxRetries  int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 16 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

// Client consumes a job's event stream, reconnecting with exponential
// backoff and resuming from the highest sequence actually received, so no
// entries are re-delivered or lost across reconnects.
type Client struct {
	cfg ClientConfig
	log *zerolog.Logger
}

func NewClient(cfg ClientConfig, log *zerolog.Logger) *Client {
	return &Client{cfg: cfg.withDefaults(), log: log}
}

// Connect blocks until a terminal event arrives (returns nil), retries are
// exhausted, or ctx is cancelled. from is the first sequence wanted.
func (c *Client) Connect(ctx context.Context, jobID string, from int64, cb Callbacks) error {
	setState := func(s ConnState) {
		if cb.OnStateChange != nil {
			cb.OnStateChange(s)
		}
	}
	setState(StateIdle)

	next := from // next sequence to request; advances past everything received
	retries := 0
	for {
		setState(StateConnecting)
		terminal, gotEvents, err := c.consume(ctx, jobID, next, &next, cb, setState)
		if terminal {
			setState(StateDisconnected)
			return nil
		}
		if ctx.Err() != nil {
			setState(StateDisconnected)
			return ctx.Err()
		}

		// A connection that delivered events resets the backoff; failure
		// streaks only count consecutive dead connections.
		if gotEvents {
			retries = 0
		}
		if retries >= c.cfg.MaxRetries {
			setState(StateError)
			return fmt.Errorf("stream reconnect retries exhausted: %w", err)
		}
		delay := c.backoff(retries)
		retries++
		setState(StateReconnecting)
		c.log.Debug().Str("job_id", jobID).Dur("delay", delay).Int("retry", retries).Msg("stream reconnecting")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			setState(StateDisconnected)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) backoff(retries int) time.Duration {
	d := c.cfg.BackoffBase
	for i := 0; i < retries; i++ {
		d = time.Duration(float64(d) * c.cfg.Multiplier)
		if d >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	return d
}

// consume runs one connection attempt. It reports whether a terminal event
// arrived and whether any event was received on this connection.
func (c *Client) consume(ctx context.Context, jobID string, from int64, next *int64, cb Callbacks, setState func(ConnState)) (terminal, gotEvents bool, err error) {
	url := fmt.Sprintf("%s/api/v1/jobs/%s/stream?from=%d", strings.TrimRight(c.cfg.BaseURL, "/"), jobID, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return false, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, false, fmt.Errorf("stream endpoint returned %d", resp.StatusCode)
	}
	setState(StateConnected)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && data != "":
			var ev Event
			if jerr := json.Unmarshal([]byte(data), &ev); jerr != nil {
				data = ""
				continue
			}
			data = ""
			gotEvents = true
			if ev.Type == "log" && ev.Sequence != nil && *ev.Sequence >= *next {
				*next = *ev.Sequence + 1
			}
			if cb.OnEvent != nil {
				cb.OnEvent(ev)
			}
			if ev.Type == "complete" || ev.Type == "error" {
				// Termination is final, not a transient failure.
				return true, gotEvents, nil
			}
		}
	}
	err = scanner.Err()
	if err == nil {
		err = fmt.Errorf("stream closed before terminal event")
	}
	return false, gotEvents, err
}
