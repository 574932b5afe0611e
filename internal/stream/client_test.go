package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func writeSSE(t *testing.T, w http.ResponseWriter, typ string, seq int64, content, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	var payload string
	if typ == "log" {
		fmt.Fprintf(w, "id: %d\n", seq)
		payload = fmt.Sprintf(`{"type":%q,"sequence":%d,"content":%q}`, typ, seq, content)
	} else {
		payload = fmt.Sprintf(`{"type":%q,"message":%q}`, typ, message)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	w.(http.Flusher).Flush()
}

func TestClientReceivesEventsUntilTerminal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("missing accept header")
		}
		writeSSE(t, w, "log", 0, "a", "")
		writeSSE(t, w, "log", 1, "b", "")
		writeSSE(t, w, "complete", 0, "", "job completed")
	}))
	defer ts.Close()

	var events []Event
	var states []ConnState
	c := NewClient(ClientConfig{BaseURL: ts.URL}, testLogger())
	err := c.Connect(context.Background(), "j1", 0, Callbacks{
		OnEvent:       func(ev Event) { events = append(events, ev) },
		OnStateChange: func(s ConnState) { states = append(states, s) },
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if len(events) != 3 || events[2].Type != "complete" {
		t.Fatalf("events = %+v", events)
	}
	if states[len(states)-1] != StateDisconnected {
		t.Errorf("final state = %s", states[len(states)-1])
	}
}

func TestClientResumesAfterDrop(t *testing.T) {
	var attempt atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch attempt.Add(1) {
		case 1:
			if from := r.URL.Query().Get("from"); from != "0" {
				t.Errorf("first attempt from = %s", from)
			}
			writeSSE(t, w, "log", 0, "a", "")
			writeSSE(t, w, "log", 1, "b", "")
			// Drop the connection without a terminal event.
		default:
			if from := r.URL.Query().Get("from"); from != "2" {
				t.Errorf("resume from = %s, want 2", from)
			}
			writeSSE(t, w, "log", 2, "c", "")
			writeSSE(t, w, "complete", 0, "", "job completed")
		}
	}))
	defer ts.Close()

	var got []Event
	var reconnecting bool
	c := NewClient(ClientConfig{BaseURL: ts.URL, BackoffBase: time.Millisecond}, testLogger())
	err := c.Connect(context.Background(), "j1", 0, Callbacks{
		OnEvent: func(ev Event) {
			if ev.Type == "log" {
				got = append(got, ev)
			}
		},
		OnStateChange: func(s ConnState) {
			if s == StateReconnecting {
				reconnecting = true
			}
		},
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !reconnecting {
		t.Error("reconnecting state never surfaced")
	}
	if len(got) != 3 {
		t.Fatalf("want exactly 3 log events with no re-delivery, got %+v", got)
	}
	for i, ev := range got {
		if ev.Sequence == nil || *ev.Sequence != int64(i) {
			t.Errorf("event %d has sequence %v", i, ev.Sequence)
		}
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	var final ConnState
	c := NewClient(ClientConfig{BaseURL: ts.URL, BackoffBase: time.Millisecond, MaxRetries: 2}, testLogger())
	err := c.Connect(context.Background(), "j1", 0, Callbacks{
		OnStateChange: func(s ConnState) { final = s },
	})
	if err == nil {
		t.Fatal("want error after retries exhausted")
	}
	if final != StateError {
		t.Errorf("final state = %s", final)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("want initial attempt + 2 retries = 3, got %d", n)
	}
}

func TestClientStopsOnContextCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, "log", 0, "a", "")
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(ClientConfig{BaseURL: ts.URL}, testLogger())

	done := make(chan error, 1)
	go func() {
		done <- c.Connect(ctx, "j1", 0, Callbacks{
			OnEvent: func(Event) { cancel() },
		})
	}()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop on cancel")
	}
}

func TestClientBackoffCapsAtMaxDelay(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "http://x"}, testLogger())
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 16 * time.Second}
	for retries, w := range want {
		if got := c.backoff(retries); got != w {
			t.Errorf("retry %d: want %v, got %v", retries, w, got)
		}
	}
}
