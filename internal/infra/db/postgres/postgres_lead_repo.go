package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"leadscout/internal/domain"
	"leadscout/internal/domain/model"
	"leadscout/internal/domain/ports/repository"
)

var _ repository.LeadRepository = (*leadRepo)(nil)

type leadRepo struct {
	pool *pgxpool.Pool
}

func NewLeadRepo(pool *pgxpool.Pool) *leadRepo {
	return &leadRepo{pool: pool}
}

func (r *leadRepo) Find(ctx context.Context, id string) (*model.Lead, error) {
	const q = `
SELECT id, org_id, company, COALESCE(domain, ''), COALESCE(tier, ''), created_at, updated_at
FROM leads
WHERE id = $1;`

	var lead model.Lead
	var tier string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&lead.ID, &lead.OrgID, &lead.Company, &lead.Domain, &tier, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	lead.Tier = model.Tier(tier)
	return &lead, nil
}

func (r *leadRepo) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	const q = `UPDATE leads SET tier = $2, updated_at = now() WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id, string(tier))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
