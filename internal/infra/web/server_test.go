package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/runner"
	"leadscout/internal/stream"
)

const testAPIKey = "test-api-key"

type fakeUC struct {
	submitStatus model.JobStatus
	submitErr    error
	lastJobID    string
	lastKind     model.JobKind
	stopFound    bool
}

func (f *fakeUC) Submit(_ context.Context, jobID string, kind model.JobKind, leadID string, _ time.Duration) (model.JobStatus, error) {
	f.lastJobID = jobID
	f.lastKind = kind
	return f.submitStatus, f.submitErr
}

func (f *fakeUC) Stop(_ context.Context, _ string) bool { return f.stopFound }

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(_ context.Context, _ string) (bool, error) { return f.allow, f.err }

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type webFixture struct {
	ts  *httptest.Server
	uc  *fakeUC
	reg *runner.Registry
}

func newWebFixture(t *testing.T, limiter SubmitLimiter, auth *AuthManager) *webFixture {
	t.Helper()
	uc := &fakeUC{submitStatus: model.JobStatusRunning}
	reg := runner.NewRegistry()
	streams := stream.NewServer(reg, stream.Config{}, testLogger())
	srv := NewServer(uc, reg, streams, limiter, auth, testAPIKey, testLogger())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &webFixture{ts: ts, uc: uc, reg: reg}
}

func doJSON(t *testing.T, method, url, body, bearer string) *http.Response {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestHealthEndpointIsPublic(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	resp, err := http.Get(f.ts.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSubmitRequiresAPIKey(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	body := `{"lead_id":"lead-1"}`

	resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", body, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", body, "wrong-key")
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong key: status = %d", resp.StatusCode)
	}
}

func TestSubmitAcceptsJob(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", `{"job_id":"j1","lead_id":"lead-1","kind":"score"}`, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.JobID != "j1" || out.Status != "running" {
		t.Errorf("response = %+v", out)
	}
	if f.uc.lastKind != model.JobKindScore {
		t.Errorf("kind = %s", f.uc.lastKind)
	}
}

func TestSubmitGeneratesJobIDWhenMissing(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", `{"lead_id":"lead-1"}`, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if f.uc.lastJobID == "" {
		t.Error("server must generate a job id")
	}
}

func TestSubmitValidationAndErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		ucErr  error
		status int
	}{
		{"missing lead", `{}`, nil, http.StatusBadRequest},
		{"bad json", `{"lead_id":`, nil, http.StatusBadRequest},
		{"duplicate job id", `{"lead_id":"l","job_id":"dup"}`, domain.ErrInvalidArgument, http.StatusBadRequest},
		{"queue timeout", `{"lead_id":"l"}`, domain.ErrQueueTimeout, http.StatusRequestTimeout},
		{"tool missing", `{"lead_id":"l"}`, domain.ErrToolNotFound, http.StatusUnprocessableEntity},
		{"spawn failure", `{"lead_id":"l"}`, domain.ErrSpawn, http.StatusUnprocessableEntity},
		{"unknown lead", `{"lead_id":"l"}`, domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		f := newWebFixture(t, nil, nil)
		f.uc.submitErr = tt.ucErr
		resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", tt.body, testAPIKey)
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.name, resp.StatusCode, tt.status)
		}
	}
}

func TestSubmitRateLimited(t *testing.T) {
	f := newWebFixture(t, &fakeLimiter{allow: false}, nil)
	resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", `{"lead_id":"l","org_id":"org-1"}`, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSubmitLimiterFailureIsOpen(t *testing.T) {
	// A broken limiter must not take down submissions.
	f := newWebFixture(t, &fakeLimiter{err: context.DeadlineExceeded}, nil)
	resp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/jobs/", `{"lead_id":"l"}`, testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestJobStatus(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	f.reg.Initialize(model.Job{ID: "j1", Kind: model.JobKindResearch, LeadID: "lead-1"})

	resp := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1", "", testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var job model.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.ID != "j1" || job.Status != model.JobStatusQueued {
		t.Errorf("job = %+v", job)
	}

	resp = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/ghost", "", testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown job: status = %d", resp.StatusCode)
	}
}

func TestKillReportsFound(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	f.uc.stopFound = true

	resp := doJSON(t, http.MethodDelete, f.ts.URL+"/api/v1/jobs/j1", "", testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		Found bool `json:"found"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Found {
		t.Error("want found=true")
	}
}

func TestStreamRejectsInvalidFrom(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	resp := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1/stream?from=banana", "", testAPIKey)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestStreamWithAPIKey(t *testing.T) {
	f := newWebFixture(t, nil, nil)
	f.reg.Initialize(model.Job{ID: "j1"})
	f.reg.Append("j1", model.LogEntry{Kind: model.LogKindInfo, Content: "hello", Timestamp: time.Now()})
	f.reg.SetStatus("j1", model.JobStatusCompleted)

	resp := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1/stream", "", testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	var sawLog, sawComplete bool
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, `"type":"log"`) {
			sawLog = true
		}
		if strings.Contains(line, `"type":"complete"`) {
			sawComplete = true
			break
		}
	}
	if !sawLog || !sawComplete {
		t.Errorf("stream incomplete: log=%v complete=%v", sawLog, sawComplete)
	}
}

func TestStreamSessionTokenAuth(t *testing.T) {
	auth := NewAuthManager("secret", false, time.Hour)
	f := newWebFixture(t, nil, auth)
	f.reg.Initialize(model.Job{ID: "j1"})
	f.reg.SetStatus("j1", model.JobStatusCompleted)

	// No credentials at all.
	resp := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1/stream", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d", resp.StatusCode)
	}

	// Mint a session, then stream with ?token= as EventSource would.
	mintResp := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/session", `{"org_id":"org-1"}`, testAPIKey)
	defer mintResp.Body.Close()
	if mintResp.StatusCode != http.StatusOK {
		t.Fatalf("mint: status = %d", mintResp.StatusCode)
	}
	var minted struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(mintResp.Body).Decode(&minted); err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if minted.Token == "" {
		t.Fatal("empty session token")
	}

	resp = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1/stream?token="+minted.Token, "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("session token: status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/jobs/j1/stream?token=forged", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token: status = %d", resp.StatusCode)
	}
}

func TestSessionClaimsRoundTrip(t *testing.T) {
	auth := NewAuthManager("secret", false, time.Hour)
	rec := httptest.NewRecorder()
	tok, err := auth.Mint(rec, "org-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?token="+tok, nil)
	claims, err := auth.ParseFromRequest(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.OrgID != "org-1" {
		t.Errorf("org = %q", claims.OrgID)
	}

	// Expired tokens are rejected.
	expired := NewAuthManager("secret", false, -time.Hour)
	tok, _ = expired.Mint(httptest.NewRecorder(), "org-1")
	if _, err := auth.ParseFromRequest(httptest.NewRequest(http.MethodGet, "/?token="+tok, nil)); err == nil {
		t.Error("expired token must not parse")
	}
}
