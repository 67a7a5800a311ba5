package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type CreateMemberInput struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	TrainerID           *uuid.UUID
	Name                string
	Email               *string
	Phone               *string
	SessionCount        int
	IsMultisport        bool
	SubscriptionPackage *string
}

type UpdateMemberInput struct {
	TrainerID           *uuid.UUID
	Name                string
	Email               *string
	Phone               *string
	SessionCount        int
	IsActive            bool
	IsMultisport        bool
	SubscriptionPackage *string
}

type MemberRepository struct {
	db DBTX
}

func NewMemberRepository(db DBTX) *MemberRepository {
	return &MemberRepository{db: db}
}

const memberColumns = `id, organization_id, trainer_id, name, email, phone,
	session_count, used_session_count, is_active, is_multisport, subscription_package,
	created_at, updated_at`

func scanMember(row interface{ Scan(dest ...any) error }) (*models.Member, error) {
	var member models.Member
	err := row.Scan(
		&member.ID,
		&member.OrganizationID,
		&member.TrainerID,
		&member.Name,
		&member.Email,
		&member.Phone,
		&member.SessionCount,
		&member.UsedSessionCount,
		&member.IsActive,
		&member.IsMultisport,
		&member.SubscriptionPackage,
		&member.CreatedAt,
		&member.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *MemberRepository) Create(
	ctx context.Context,
	input CreateMemberInput,
) (*models.Member, error) {
	query := fmt.Sprintf(`
		INSERT INTO members (id, organization_id, trainer_id, name, email, phone,
			session_count, is_active, is_multisport, subscription_package)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)
		RETURNING %s
	`, memberColumns)
	return scanMember(r.db.QueryRow(
		ctx,
		query,
		input.ID,
		input.OrganizationID,
		input.TrainerID,
		input.Name,
		input.Email,
		input.Phone,
		input.SessionCount,
		input.IsMultisport,
		input.SubscriptionPackage,
	))
}

func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	query := fmt.Sprintf(`SELECT %s FROM members WHERE id = $1`, memberColumns)
	return scanMember(r.db.QueryRow(ctx, query, id))
}

func (r *MemberRepository) ListByOrganization(
	ctx context.Context,
	organizationID uuid.UUID,
	activeOnly bool,
) ([]models.Member, error) {
	whereParts := []string{"organization_id = $1"}
	if activeOnly {
		whereParts = append(whereParts, "is_active = TRUE")
	}
	query := fmt.Sprintf(
		`SELECT %s FROM members WHERE %s ORDER BY name ASC`,
		memberColumns,
		strings.Join(whereParts, " AND "),
	)

	rows, err := r.db.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := make([]models.Member, 0)
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *member)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return members, nil
}

func (r *MemberRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	input UpdateMemberInput,
) (*models.Member, error) {
	query := fmt.Sprintf(`
		UPDATE members
		SET trainer_id = $2, name = $3, email = $4, phone = $5, session_count = $6,
			is_active = $7, is_multisport = $8, subscription_package = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING %s
	`, memberColumns)
	return scanMember(r.db.QueryRow(
		ctx,
		query,
		id,
		input.TrainerID,
		input.Name,
		input.Email,
		input.Phone,
		input.SessionCount,
		input.IsActive,
		input.IsMultisport,
		input.SubscriptionPackage,
	))
}

// IncrementUsedSessions consumes one package credit.
func (r *MemberRepository) IncrementUsedSessions(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(
		ctx,
		`UPDATE members SET used_session_count = used_session_count + 1, updated_at = NOW() WHERE id = $1`,
		id,
	)
	return err
}

func (r *MemberRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
