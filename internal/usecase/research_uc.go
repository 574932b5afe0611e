package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/prompt"
	"leadscout/internal/domain/ports/repository"
	"leadscout/internal/infra/logging"
	"leadscout/internal/runner"
	"leadscout/internal/scoring"
)

// ResearchUseCase is the submission surface consumed by the dashboard's
// CRUD layer: it builds the tool invocation for a lead, hands it to the
// runner, and persists results when the job finishes.
type ResearchUseCase interface {
	// Submit starts a research or scoring job for the lead. jobID is
	// caller-generated so the UI can open its stream before the tool spawns.
	Submit(ctx context.Context, jobID string, kind model.JobKind, leadID string, timeout time.Duration) (model.JobStatus, error)
	// Stop cancels a job; found=false means it already finished.
	Stop(ctx context.Context, jobID string) bool
}

type researchUC struct {
	run         *runner.Runner
	leads       repository.LeadRepository
	results     repository.ResultRepository
	prompts     prompt.Builder
	rubric      model.ScoringConfig
	artifactDir string
	log         *zerolog.Logger
}

func NewResearchUseCase(
	run *runner.Runner,
	leads repository.LeadRepository,
	results repository.ResultRepository,
	prompts prompt.Builder,
	rubric model.ScoringConfig,
	artifactDir string,
	log *zerolog.Logger,
) *researchUC {
	return &researchUC{
		run:         run,
		leads:       leads,
		results:     results,
		prompts:     prompts,
		rubric:      rubric,
		artifactDir: artifactDir,
		log:         log,
	}
}

func (uc *researchUC) Submit(ctx context.Context, jobID string, kind model.JobKind, leadID string, timeout time.Duration) (model.JobStatus, error) {
	ctx = logging.WithLeadID(logging.WithJobID(ctx, jobID), leadID)
	defer logging.TraceDuration(logging.With(ctx, uc.log), "ResearchUC.Submit")()

	lead, err := uc.leads.Find(ctx, leadID)
	if err != nil {
		return "", fmt.Errorf("find lead: %w", err)
	}

	var args []string
	switch kind {
	case model.JobKindScore:
		args, err = uc.prompts.ScoreArgs(ctx, lead, uc.rubric, uc.artifactPath(jobID))
	default:
		kind = model.JobKindResearch
		args, err = uc.prompts.ResearchArgs(ctx, lead)
	}
	if err != nil {
		return "", fmt.Errorf("build prompt args: %w", err)
	}

	return uc.run.Submit(ctx, runner.SubmitSpec{
		JobID:   jobID,
		Kind:    kind,
		LeadID:  leadID,
		Args:    args,
		Timeout: timeout,
	})
}

func (uc *researchUC) Stop(ctx context.Context, jobID string) bool {
	return uc.run.Kill(jobID)
}

func (uc *researchUC) artifactPath(jobID string) string {
	return filepath.Join(uc.artifactDir, jobID+".score.json")
}

// HandleCompletion is the runner's completion hook. It runs after the
// terminal transition, before the worker slot frees: it assembles the
// report from the job's log, parses the scoring artifact for score jobs,
// and persists the result.
func (uc *researchUC) HandleCompletion(ctx context.Context, job model.Job, exit runner.ExitInfo) {
	ctx = logging.WithLeadID(logging.WithJobID(ctx, job.ID), job.LeadID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "ResearchUC.HandleCompletion")()

	if job.Status != model.JobStatusCompleted {
		log.Debug().Str("status", string(job.Status)).Msg("skipping persistence for unfinished job")
		return
	}

	res := &model.ResearchResult{
		ID:        ulid.Make().String(),
		JobID:     job.ID,
		LeadID:    job.LeadID,
		Kind:      job.Kind,
		Report:    buildReport(uc.run.Output(job.ID)),
		CreatedAt: time.Now(),
	}

	if job.Kind == model.JobKindScore {
		raw, err := os.ReadFile(uc.artifactPath(job.ID))
		if err != nil {
			log.Error().Err(err).Msg("scoring artifact missing")
		} else if parsed, perr := scoring.Parse(raw, uc.rubric); perr != nil {
			// Keep the raw artifact for inspection; the parse failure is
			// terminal for this handler but must not crash the pipeline.
			res.RawArtifact = string(raw)
			log.Error().Err(perr).Msg("scoring artifact unparsable")
		} else {
			res.Score = parsed
			for _, p := range scoring.Validate(parsed, uc.rubric) {
				log.Warn().Str("discrepancy", p).Msg("scoring result discrepancy")
			}
			if err := uc.leads.UpdateTier(ctx, job.LeadID, parsed.Tier); err != nil {
				log.Error().Err(err).Msg("failed to update lead tier")
			}
		}
	}

	if err := uc.results.Save(ctx, res); err != nil {
		log.Error().Err(err).Msg("failed to persist result")
		return
	}
	log.Info().Str("result_id", res.ID).Msg("result persisted")
}

// buildReport flattens the job's human-visible output into the stored
// report text. Tool-call plumbing is noise in a report and is skipped.
func buildReport(entries []model.LogEntry) string {
	var b strings.Builder
	for _, e := range entries {
		switch e.Kind {
		case model.LogKindInfo, model.LogKindRaw:
			if strings.TrimSpace(e.Content) == "" {
				continue
			}
			b.WriteString(e.Content)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
