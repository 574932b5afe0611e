package model

import "time"

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusTimedOut  JobStatus = "timed_out"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is a final status. Terminal statuses are
// monotonic: once a job reaches one it never transitions again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	}
	return false
}

// JobKind selects which external-tool invocation a job performs.
type JobKind string

const (
	JobKindResearch JobKind = "research"
	JobKindScore    JobKind = "score"
)

// Job is one external-tool invocation. The ID is generated by the caller
// before submission so the dashboard can reference it immediately.
type Job struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	LeadID      string     `json:"lead_id,omitempty"`
	Status      JobStatus  `json:"status"`
	TimeoutMs   int        `json:"timeout_ms"`
	PID         int        `json:"pid,omitempty"` // set only while running
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExitReason records why a supervised process stopped.
type ExitReason string

const (
	ExitReasonExited  ExitReason = "exited"
	ExitReasonTimeout ExitReason = "timeout"
	ExitReasonKilled  ExitReason = "killed"
)

type LogKind string

const (
	LogKindInfo       LogKind = "info"
	LogKindToolCall   LogKind = "tool-call"
	LogKindToolResult LogKind = "tool-result"
	LogKindError      LogKind = "error"
	LogKindRaw        LogKind = "raw"
)

// LogEntry is one unit of observed subprocess output. Sequence numbers are
// assigned by the registry on append, strictly increasing per job, and are
// the resume offset for stream consumers.
type LogEntry struct {
	Sequence  int64     `json:"sequence"`
	Kind      LogKind   `json:"logType"`
	Content   string    `json:"content"`
	ToolName  string    `json:"toolName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
