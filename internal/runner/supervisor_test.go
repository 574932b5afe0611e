package runner

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// collect drains the handle until exit, returning all output and the exit info.
func collect(t *testing.T, h *Handle) ([]byte, ExitInfo) {
	t.Helper()
	var buf bytes.Buffer
	for chunk := range h.Data {
		buf.Write(chunk)
	}
	select {
	case exit := <-h.Exit:
		return buf.Bytes(), exit
	case <-time.After(5 * time.Second):
		t.Fatal("no exit event")
		return nil, ExitInfo{}
	}
}

func TestSupervisorForwardsOutputAndExitsCleanly(t *testing.T) {
	s := NewSupervisor(testLogger())
	h, err := s.Start(StartSpec{
		JobID:   "j1",
		Command: "/bin/sh",
		Args:    []string{"-c", `printf 'hello\nworld\n'`},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if h.PID <= 0 {
		t.Error("pid not recorded")
	}

	out, exit := collect(t, h)
	if string(out) != "hello\nworld\n" {
		t.Errorf("output = %q", out)
	}
	if exit.Reason != model.ExitReasonExited || exit.Code != 0 {
		t.Errorf("exit = %+v", exit)
	}
	if s.Running("j1") {
		t.Error("handle not removed after exit")
	}
}

func TestSupervisorReportsNonZeroExit(t *testing.T) {
	s := NewSupervisor(testLogger())
	h, err := s.Start(StartSpec{JobID: "j1", Command: "/bin/sh", Args: []string{"-c", "exit 3"}, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, exit := collect(t, h)
	if exit.Reason != model.ExitReasonExited || exit.Code != 3 {
		t.Errorf("exit = %+v", exit)
	}
}

func TestSupervisorToolNotFound(t *testing.T) {
	s := NewSupervisor(testLogger())
	_, err := s.Start(StartSpec{JobID: "j1", Command: "definitely-not-a-real-tool-xyz"})
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("want ErrToolNotFound, got %v", err)
	}
	if s.Running("j1") {
		t.Error("failed start must not leave a handle behind")
	}
}

func TestSupervisorTimeoutKillsProcess(t *testing.T) {
	s := NewSupervisor(testLogger())
	start := time.Now()
	h, err := s.Start(StartSpec{JobID: "j1", Command: "/bin/sh", Args: []string{"-c", "sleep 10"}, Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, exit := collect(t, h)
	if exit.Reason != model.ExitReasonTimeout {
		t.Errorf("want timeout reason, got %+v", exit)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not fire promptly")
	}
}

func TestSupervisorSignalDeathIsNotCancellation(t *testing.T) {
	s := NewSupervisor(testLogger())
	// The tool killing itself stands in for any crash nobody asked for
	// (SIGSEGV, OOM kill); no Kill was requested, so the exit must not be
	// classified as killed.
	h, err := s.Start(StartSpec{JobID: "j1", Command: "/bin/sh", Args: []string{"-c", "kill -9 $$"}, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, exit := collect(t, h)
	if exit.Reason != model.ExitReasonExited {
		t.Errorf("unsolicited signal death must stay exited, got %+v", exit)
	}
	if exit.Code >= 0 {
		t.Errorf("signal death should report a negative code, got %d", exit.Code)
	}
}

func TestSupervisorKillIsIdempotent(t *testing.T) {
	s := NewSupervisor(testLogger())
	h, err := s.Start(StartSpec{JobID: "j1", Command: "/bin/sh", Args: []string{"-c", "sleep 10"}, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if !s.Kill("j1") {
		t.Fatal("first kill should find the job")
	}
	if s.Kill("j1") {
		t.Error("second kill must report found=false")
	}

	_, exit := collect(t, h)
	if exit.Reason != model.ExitReasonKilled {
		t.Errorf("want killed reason, got %+v", exit)
	}

	if s.Kill("j1") {
		t.Error("kill after exit must report found=false")
	}
}

func TestSupervisorExactlyOneExitEvent(t *testing.T) {
	s := NewSupervisor(testLogger())
	h, err := s.Start(StartSpec{JobID: "j1", Command: "/bin/sh", Args: []string{"-c", "true"}, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = collect(t, h)
	// Exit channel is closed after the single event.
	if _, more := <-h.Exit; more {
		t.Fatal("more than one exit event")
	}
}
