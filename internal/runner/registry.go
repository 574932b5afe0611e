package runner

import (
	"sync"
	"time"

	"leadscout/internal/domain/model"
)

// Registry is the process-wide in-memory store of job status and accumulated
// output. One writer per job (the supervisor's drain goroutine), any number
// of readers (open streams). Nothing here blocks.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*jobState
}

type jobState struct {
	job     model.Job
	entries []model.LogEntry
	nextSeq int64
}

func NewRegistry() *Registry {
	return &Registry{jobs: map[string]*jobState{}}
}

// Initialize creates the job record in queued state. Seed messages (e.g.
// "research started") become the first log entries. A live job already
// holding the id is left untouched and Initialize reports false; reusing an
// id would reset its sequence counter under streams already open on it. Ids
// become reusable once the previous job is terminal.
func (r *Registry) Initialize(job model.Job, seed ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.jobs[job.ID]; ok && !cur.job.Status.Terminal() {
		return false
	}
	st := &jobState{job: job}
	st.job.Status = model.JobStatusQueued
	if st.job.CreatedAt.IsZero() {
		st.job.CreatedAt = time.Now()
	}
	for _, msg := range seed {
		st.append(model.LogEntry{Kind: model.LogKindInfo, Content: msg, Timestamp: time.Now()})
	}
	r.jobs[job.ID] = st
	return true
}

func (st *jobState) append(e model.LogEntry) {
	e.Sequence = st.nextSeq
	st.nextSeq++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	st.entries = append(st.entries, e)
}

// Append adds one entry, assigning its sequence number. Appending to an
// unknown job is a no-op: late writes after eviction are expected.
func (r *Registry) Append(jobID string, e model.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[jobID]
	if !ok {
		return
	}
	st.append(e)
}

// Output returns a copy of the full log buffer.
func (r *Registry) Output(jobID string) []model.LogEntry {
	return r.Snapshot(jobID, 0)
}

// Snapshot returns a copy of entries with sequence >= from.
func (r *Registry) Snapshot(jobID string, from int64) []model.LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.jobs[jobID]
	if !ok {
		return nil
	}
	// Sequences are dense from 0, so the slice index is the sequence.
	if from < 0 {
		from = 0
	}
	if from >= int64(len(st.entries)) {
		return nil
	}
	out := make([]model.LogEntry, int64(len(st.entries))-from)
	copy(out, st.entries[from:])
	return out
}

// SetStatus transitions the job, stamping StartedAt/CompletedAt as
// appropriate. Terminal statuses are monotonic: a later transition attempt
// is dropped and the first terminal state wins.
func (r *Registry) SetStatus(jobID string, status model.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[jobID]
	if !ok {
		return
	}
	if st.job.Status.Terminal() {
		return
	}
	st.job.Status = status
	now := time.Now()
	switch {
	case status == model.JobStatusRunning:
		st.job.StartedAt = &now
	case status.Terminal():
		st.job.CompletedAt = &now
		st.job.PID = 0
	}
}

// SetPID records the subprocess pid while the job is running.
func (r *Registry) SetPID(jobID string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.jobs[jobID]; ok && !st.job.Status.Terminal() {
		st.job.PID = pid
	}
}

// SetError stores the human-readable failure reason surfaced by the
// stream's terminal error event.
func (r *Registry) SetError(jobID, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.jobs[jobID]; ok {
		st.job.LastError = msg
	}
}

// Job returns a copy of the job record.
func (r *Registry) Job(jobID string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, false
	}
	return st.job, true
}

func (r *Registry) Status(jobID string) (model.JobStatus, bool) {
	j, ok := r.Job(jobID)
	return j.Status, ok
}

// Clear evicts the job and its buffered output. Called after the eviction
// grace period so slow stream consumers can still catch up.
func (r *Registry) Clear(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Len reports how many jobs are held, for diagnostics and tests.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
