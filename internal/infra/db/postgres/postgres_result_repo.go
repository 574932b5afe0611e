package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/repository"
)

var _ repository.ResultRepository = (*resultRepo)(nil)

type resultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *resultRepo {
	return &resultRepo{pool: pool}
}

func (r *resultRepo) Save(ctx context.Context, res *model.ResearchResult) error {
	if res.ID == "" {
		res.ID = ulid.Make().String()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}

	var scoreJSON []byte
	if res.Score != nil {
		b, err := json.Marshal(res.Score)
		if err != nil {
			return err
		}
		scoreJSON = b
	}

	const q = `
INSERT INTO research_results (id, job_id, lead_id, kind, report, score, raw_artifact, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_id) DO UPDATE SET
  report = EXCLUDED.report,
  score = EXCLUDED.score,
  raw_artifact = EXCLUDED.raw_artifact;`

	_, err := r.pool.Exec(ctx, q,
		res.ID, res.JobID, res.LeadID, string(res.Kind), res.Report, scoreJSON, res.RawArtifact, res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode23503 {
			// FK violation: the lead was deleted while its job ran.
			return fmt.Errorf("%w: lead %s", domain.ErrNotFound, res.LeadID)
		}
		return err
	}
	return nil
}

// foreign_key_violation
const pgerrcode23503 = "23503"

func (r *resultRepo) FindByJobID(ctx context.Context, jobID string) (*model.ResearchResult, error) {
	const q = `
SELECT id, job_id, lead_id, kind, COALESCE(report, ''), score, COALESCE(raw_artifact, ''), created_at
FROM research_results
WHERE job_id = $1;`

	var res model.ResearchResult
	var kind string
	var scoreJSON []byte
	err := r.pool.QueryRow(ctx, q, jobID).Scan(
		&res.ID, &res.JobID, &res.LeadID, &kind, &res.Report, &scoreJSON, &res.RawArtifact, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	res.Kind = model.JobKind(kind)
	if len(scoreJSON) > 0 {
		var score model.ScoringResult
		if err := json.Unmarshal(scoreJSON, &score); err == nil {
			res.Score = &score
		}
	}
	return &res, nil
}
