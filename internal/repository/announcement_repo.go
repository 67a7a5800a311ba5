package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type AnnouncementRepository struct {
	db DBTX
}

func NewAnnouncementRepository(db DBTX) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

func (r *AnnouncementRepository) Create(
	ctx context.Context,
	organizationID uuid.UUID,
	senderID uuid.UUID,
	title string,
	content string,
) (*models.Announcement, error) {
	query := `
		INSERT INTO announcements (organization_id, sender_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, organization_id, sender_id, title, content, created_at
	`
	var announcement models.Announcement
	err := r.db.QueryRow(ctx, query, organizationID, senderID, title, content).Scan(
		&announcement.ID,
		&announcement.OrganizationID,
		&announcement.SenderID,
		&announcement.Title,
		&announcement.Content,
		&announcement.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &announcement, nil
}

func (r *AnnouncementRepository) ListByOrganization(
	ctx context.Context,
	organizationID uuid.UUID,
	limit int,
) ([]models.Announcement, error) {
	query := `
		SELECT id, organization_id, sender_id, title, content, created_at
		FROM announcements
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, organizationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	announcements := make([]models.Announcement, 0)
	for rows.Next() {
		var announcement models.Announcement
		if err := rows.Scan(
			&announcement.ID,
			&announcement.OrganizationID,
			&announcement.SenderID,
			&announcement.Title,
			&announcement.Content,
			&announcement.CreatedAt,
		); err != nil {
			return nil, err
		}
		announcements = append(announcements, announcement)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return announcements, nil
}
