package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type OrganizationRepository struct {
	db DBTX
}

func NewOrganizationRepository(db DBTX) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*models.Organization, error) {
	query := `
		SELECT id, name, subscription_tier, trial_ends_at, created_at
		FROM organizations
		WHERE id = $1
	`
	var org models.Organization
	err := r.db.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.SubscriptionTier,
		&org.TrialEndsAt,
		&org.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
