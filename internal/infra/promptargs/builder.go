// Package promptargs is the default prompt.Builder: it maps a lead and
// rubric onto the research tool's command line. The dashboard can swap in a
// richer template-driven builder without touching the pipeline.
package promptargs

import (
	"context"
	"encoding/json"
	"fmt"

	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/prompt"
)

var _ prompt.Builder = (*Builder)(nil)

type Builder struct{}

func New() *Builder { return &Builder{} }

func (b *Builder) ResearchArgs(_ context.Context, lead *model.Lead) ([]string, error) {
	args := []string{"research", "--company", lead.Company}
	if lead.Domain != "" {
		args = append(args, "--domain", lead.Domain)
	}
	return args, nil
}

func (b *Builder) ScoreArgs(_ context.Context, lead *model.Lead, cfg model.ScoringConfig, artifactPath string) ([]string, error) {
	rubric, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal rubric: %w", err)
	}
	args := []string{
		"score",
		"--company", lead.Company,
		"--rubric", string(rubric),
		"--output", artifactPath,
	}
	if lead.Domain != "" {
		args = append(args, "--domain", lead.Domain)
	}
	return args, nil
}
