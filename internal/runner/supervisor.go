package runner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
)

// StartSpec describes one external-tool invocation to supervise.
type StartSpec struct {
	JobID   string
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// ExitInfo reports a subprocess's terminal transition.
type ExitInfo struct {
	Code   int
	Reason model.ExitReason
}

// Handle tracks one live subprocess. Output chunks are published on Data in
// arrival order; Data is closed when the process stops, after which exactly
// one ExitInfo arrives on Exit.
type Handle struct {
	JobID string
	PID   int

	Data <-chan []byte
	Exit <-chan ExitInfo

	cmd *exec.Cmd

	mu       sync.Mutex
	reason   model.ExitReason // set by Kill/timeout before the signal lands
	terminal bool
}

// requestKill records the terminal reason and signals the process. Returns
// false when the job already reached its terminal transition: that racer
// lost and the observation is a no-op.
func (h *Handle) requestKill(reason model.ExitReason) bool {
	h.mu.Lock()
	if h.terminal || h.reason != "" {
		h.mu.Unlock()
		return false
	}
	h.reason = reason
	h.mu.Unlock()
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	return true
}

func (h *Handle) markTerminal() model.ExitReason {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.terminal = true
	return h.reason
}

// Supervisor spawns and watches research-tool subprocesses, enforcing the
// per-job wall-clock budget and serving explicit cancellation.
type Supervisor struct {
	mu      sync.Mutex
	handles map[string]*Handle
	log     *zerolog.Logger
}

func NewSupervisor(log *zerolog.Logger) *Supervisor {
	return &Supervisor{handles: map[string]*Handle{}, log: log}
}

// Start spawns the tool. Spawn failures surface synchronously as
// ErrToolNotFound or ErrSpawn; the job never enters running.
func (s *Supervisor) Start(spec StartSpec) (*Handle, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", domain.ErrSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", domain.ErrSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, spec.Command)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSpawn, err)
	}

	chunks := make(chan []byte, 64)
	exit := make(chan ExitInfo, 1)
	h := &Handle{
		JobID: spec.JobID,
		PID:   cmd.Process.Pid,
		Data:  chunks,
		Exit:  exit,
		cmd:   cmd,
	}
	s.mu.Lock()
	s.handles[spec.JobID] = h
	s.mu.Unlock()

	var readers sync.WaitGroup
	readers.Add(2)
	go readPipe(stdout, chunks, &readers)
	go readPipe(stderr, chunks, &readers)

	var timer *time.Timer
	if spec.Timeout > 0 {
		timer = time.AfterFunc(spec.Timeout, func() {
			if h.requestKill(model.ExitReasonTimeout) {
				s.log.Warn().Str("job_id", spec.JobID).Dur("timeout", spec.Timeout).Msg("job exceeded time budget, killing")
			}
		})
	}

	go s.supervise(h, chunks, exit, &readers, timer)
	return h, nil
}

func readPipe(r io.Reader, chunks chan<- []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c := make([]byte, n)
			copy(c, buf[:n])
			chunks <- c
		}
		if err != nil {
			return
		}
	}
}

// supervise waits the process out, then closes Data and publishes the single
// ExitInfo. Closing Data before sending Exit guarantees every consumer sees
// all output before the terminal event.
func (s *Supervisor) supervise(h *Handle, chunks chan []byte, exit chan ExitInfo, readers *sync.WaitGroup, timer *time.Timer) {
	readers.Wait()
	_ = h.cmd.Wait()
	if timer != nil {
		timer.Stop()
	}
	close(chunks)

	code := h.cmd.ProcessState.ExitCode()
	reason := h.markTerminal()
	// A recorded kill reason only counts if the process actually died to
	// the signal; a natural exit that raced the kill wins. A signal death
	// with no recorded reason (tool crash, OOM kill) is not a cancellation:
	// it stays ExitReasonExited and the negative code marks the failure.
	if reason == "" || code >= 0 {
		reason = model.ExitReasonExited
	}

	s.mu.Lock()
	delete(s.handles, h.JobID)
	s.mu.Unlock()

	exit <- ExitInfo{Code: code, Reason: reason}
	close(exit)
}

// Kill cancels a running job. Idempotent: killing an already-exited or
// already-killed job reports found=false, not an error.
func (s *Supervisor) Kill(jobID string) bool {
	s.mu.Lock()
	h, ok := s.handles[jobID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	return h.requestKill(model.ExitReasonKilled)
}

// Running reports whether the supervisor is tracking a live process for the job.
func (s *Supervisor) Running(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[jobID]
	return ok
}
