package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type CreatePaymentInput struct {
	MemberID    uuid.UUID
	Amount      float64
	Type        string
	Category    string
	Description *string
	Date        time.Time
}

type UpdatePaymentInput struct {
	Amount      float64
	Type        string
	Category    string
	Description *string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records a payment for a member of the given organization. A member
// outside the organization yields pgx.ErrNoRows, never a row.
func (r *PaymentRepository) Create(
	ctx context.Context,
	organizationID uuid.UUID,
	input CreatePaymentInput,
) (*models.Payment, error) {
	query := `
		INSERT INTO payments (member_id, amount, type, category, description, date)
		SELECT m.id, $2, $3, $4, $5, $6
		FROM members m
		WHERE m.id = $1 AND m.organization_id = $7
		RETURNING id, member_id, amount, type, category, description, date, created_at
	`
	var payment models.Payment
	err := r.db.QueryRow(
		ctx,
		query,
		input.MemberID,
		input.Amount,
		input.Type,
		input.Category,
		input.Description,
		input.Date,
		organizationID,
	).Scan(
		&payment.ID,
		&payment.MemberID,
		&payment.Amount,
		&payment.Type,
		&payment.Category,
		&payment.Description,
		&payment.Date,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// CountByOrganization returns how many payments the organization's members
// hold in total, for pagination.
func (r *PaymentRepository) CountByOrganization(
	ctx context.Context,
	organizationID uuid.UUID,
) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM payments p
		JOIN members m ON m.id = p.member_id
		WHERE m.organization_id = $1
	`
	var count int
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListByOrganization returns one page of the organization's payments, newest
// first.
func (r *PaymentRepository) ListByOrganization(
	ctx context.Context,
	organizationID uuid.UUID,
	limit int,
	offset int,
) ([]models.PaymentDetail, error) {
	query := `
		SELECT p.id, p.member_id, p.amount, p.type, p.category, p.description, p.date, p.created_at,
		       m.name
		FROM payments p
		JOIN members m ON m.id = p.member_id
		WHERE m.organization_id = $1
		ORDER BY p.date DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]models.PaymentDetail, 0)
	for rows.Next() {
		var detail models.PaymentDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.MemberID,
			&detail.Amount,
			&detail.Type,
			&detail.Category,
			&detail.Description,
			&detail.Date,
			&detail.CreatedAt,
			&detail.MemberName,
		); err != nil {
			return nil, err
		}
		payments = append(payments, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// Update edits a payment, touching only rows whose member belongs to the
// organization. Foreign rows come back as pgx.ErrNoRows.
func (r *PaymentRepository) Update(
	ctx context.Context,
	organizationID uuid.UUID,
	id uuid.UUID,
	input UpdatePaymentInput,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET amount = $2, type = $3, category = $4, description = $5
		WHERE id = $1
		  AND member_id IN (SELECT id FROM members WHERE organization_id = $6)
		RETURNING id, member_id, amount, type, category, description, date, created_at
	`
	var payment models.Payment
	err := r.db.QueryRow(
		ctx,
		query,
		id,
		input.Amount,
		input.Type,
		input.Category,
		input.Description,
		organizationID,
	).Scan(
		&payment.ID,
		&payment.MemberID,
		&payment.Amount,
		&payment.Type,
		&payment.Category,
		&payment.Description,
		&payment.Date,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) Delete(
	ctx context.Context,
	organizationID uuid.UUID,
	id uuid.UUID,
) (int64, error) {
	query := `
		DELETE FROM payments
		WHERE id = $1
		  AND member_id IN (SELECT id FROM members WHERE organization_id = $2)
	`
	tag, err := r.db.Exec(ctx, query, id, organizationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
