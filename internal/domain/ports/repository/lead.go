package repository

import (
	"context"

	"leadscout/internal/domain/model"
)

// LeadRepository is the narrow read surface the pipeline needs from the
// dashboard's lead storage.
type LeadRepository interface {
	Find(ctx context.Context, id string) (*model.Lead, error)
	UpdateTier(ctx context.Context, id string, tier model.Tier) error
}

// ResultRepository persists finished job output. Called from the completion
// hook after the terminal transition; never on the hot path.
type ResultRepository interface {
	Save(ctx context.Context, res *model.ResearchResult) error
	FindByJobID(ctx context.Context, jobID string) (*model.ResearchResult, error)
}
