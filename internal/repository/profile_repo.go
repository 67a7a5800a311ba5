package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `
		SELECT id, organization_id, role, first_name, last_name, avatar_url, created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.OrganizationID,
		&profile.Role,
		&profile.FirstName,
		&profile.LastName,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) ListByOrganization(
	ctx context.Context,
	organizationID uuid.UUID,
) ([]models.Profile, error) {
	query := `
		SELECT id, organization_id, role, first_name, last_name, avatar_url, created_at, updated_at
		FROM profiles
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var profile models.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.OrganizationID,
			&profile.Role,
			&profile.FirstName,
			&profile.LastName,
			&profile.AvatarURL,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *ProfileRepository) ListByOrganizationAndRole(
	ctx context.Context,
	organizationID uuid.UUID,
	role string,
) ([]models.Profile, error) {
	query := `
		SELECT id, organization_id, role, first_name, last_name, avatar_url, created_at, updated_at
		FROM profiles
		WHERE organization_id = $1 AND role = $2
		ORDER BY first_name ASC, last_name ASC
	`
	rows, err := r.db.Query(ctx, query, organizationID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		var profile models.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.OrganizationID,
			&profile.Role,
			&profile.FirstName,
			&profile.LastName,
			&profile.AvatarURL,
			&profile.CreatedAt,
			&profile.UpdatedAt,
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *ProfileRepository) UpdateNames(
	ctx context.Context,
	id uuid.UUID,
	firstName *string,
	lastName *string,
) (*models.Profile, error) {
	query := `
		UPDATE profiles
		SET first_name = $2, last_name = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, organization_id, role, first_name, last_name, avatar_url, created_at, updated_at
	`
	var profile models.Profile
	err := r.db.QueryRow(ctx, query, id, firstName, lastName).Scan(
		&profile.ID,
		&profile.OrganizationID,
		&profile.Role,
		&profile.FirstName,
		&profile.LastName,
		&profile.AvatarURL,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) UpdateAvatarURL(
	ctx context.Context,
	id uuid.UUID,
	avatarURL string,
) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE profiles SET avatar_url = $2, updated_at = NOW() WHERE id = $1`,
		id,
		avatarURL,
	)
	return err
}

func (r *ProfileRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
