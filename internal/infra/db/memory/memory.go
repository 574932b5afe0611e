// Package memory holds in-memory repository implementations for dev mode,
// where running without Postgres is allowed.
package memory

import (
	"context"
	"sync"
	"time"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/repository"
)

var (
	_ repository.LeadRepository   = (*LeadRepo)(nil)
	_ repository.ResultRepository = (*ResultRepo)(nil)
)

type LeadRepo struct {
	mu   sync.RWMutex
	byID map[string]*model.Lead
}

func NewLeadRepo(seed ...*model.Lead) *LeadRepo {
	r := &LeadRepo{byID: map[string]*model.Lead{}}
	for _, l := range seed {
		cp := *l
		r.byID[l.ID] = &cp
	}
	return r
}

func (r *LeadRepo) Put(lead *model.Lead) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *lead
	r.byID[lead.ID] = &cp
}

func (r *LeadRepo) Find(_ context.Context, id string) (*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *LeadRepo) UpdateTier(_ context.Context, id string, tier model.Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	l.Tier = tier
	l.UpdatedAt = time.Now()
	return nil
}

type ResultRepo struct {
	mu      sync.RWMutex
	byJobID map[string]*model.ResearchResult
}

func NewResultRepo() *ResultRepo {
	return &ResultRepo{byJobID: map[string]*model.ResearchResult{}}
}

func (r *ResultRepo) Save(_ context.Context, res *model.ResearchResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *res
	r.byJobID[res.JobID] = &cp
	return nil
}

func (r *ResultRepo) FindByJobID(_ context.Context, jobID string) (*model.ResearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.byJobID[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *res
	return &cp, nil
}
