package model

import "time"

// Lead and Person are the stored records research and scoring jobs run
// against. CRUD over them lives in the dashboard layer; the pipeline only
// reads them to build tool invocations and writes results back.

type Lead struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Company   string    `json:"company"`
	Domain    string    `json:"domain,omitempty"`
	Tier      Tier      `json:"tier,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Person struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Name      string    `json:"name"`
	Title     string    `json:"title,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ResearchResult is the persisted outcome of one finished job: the raw
// report text for research jobs, plus the parsed verdict for scoring jobs.
// RawArtifact keeps the unparsed scoring file when parsing failed, for
// inspection.
type ResearchResult struct {
	ID          string         `json:"id"` // ulid, sortable by creation time
	JobID       string         `json:"job_id"`
	LeadID      string         `json:"lead_id"`
	Kind        JobKind        `json:"kind"`
	Report      string         `json:"report,omitempty"`
	Score       *ScoringResult `json:"score,omitempty"`
	RawArtifact string         `json:"raw_artifact,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
