package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/infra/logging"
)

type submitRequest struct {
	JobID     string `json:"job_id"`
	LeadID    string `json:"lead_id"`
	Kind      string `json:"kind"` // research | score
	OrgID     string `json:"org_id"`
	TimeoutMs int    `json:"timeout_ms"`
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.LeadID == "" {
		http.Error(w, "lead_id is required", http.StatusBadRequest)
		return
	}
	if req.JobID == "" {
		// Callers normally pre-generate the id so the UI can open its
		// stream first; server-side generation is the fallback.
		req.JobID = uuid.NewString()
	}
	ctx = logging.WithJobID(ctx, req.JobID)
	if req.OrgID != "" {
		ctx = logging.WithOrgID(ctx, req.OrgID)
	}
	log := logging.With(ctx, s.log)

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, req.OrgID)
		if err != nil {
			log.Error().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			http.Error(w, domain.ErrRateLimited.Error(), http.StatusTooManyRequests)
			return
		}
	}

	status, err := s.uc.Submit(ctx, req.JobID, model.JobKind(req.Kind), req.LeadID, time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrQueueTimeout):
			http.Error(w, err.Error(), http.StatusRequestTimeout)
		case errors.Is(err, domain.ErrToolNotFound), errors.Is(err, domain.ErrSpawn):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "lead not found", http.StatusNotFound)
		default:
			log.Error().Err(err).Msg("submit failed")
			http.Error(w, "Failed to submit job", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(submitResponse{JobID: req.JobID, Status: string(status)})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.reg.Job(id)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(job)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found := s.uc.Stop(logging.WithJobID(r.Context(), id), id)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Found bool `json:"found"`
	}{Found: found})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var from int64
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = n
	}
	s.streams.Serve(r.Context(), w, id, from)
}

func (s *Server) handleMintSession(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Error(w, "sessions not configured", http.StatusNotImplemented)
		return
	}
	var req struct {
		OrgID string `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tok, err := s.auth.Mint(w, req.OrgID)
	if err != nil {
		http.Error(w, "Failed to mint session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Token string `json:"token"`
	}{Token: tok})
}
