package prompt

import (
	"context"

	"leadscout/internal/domain/model"
)

// Builder turns a lead (and rubric, for scoring jobs) into the argument list
// for the external research tool. Prompt-template text construction lives in
// the dashboard layer; the pipeline only consumes this port.
type Builder interface {
	ResearchArgs(ctx context.Context, lead *model.Lead) ([]string, error)
	ScoreArgs(ctx context.Context, lead *model.Lead, cfg model.ScoringConfig, artifactPath string) ([]string, error)
}
