package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
)

type CreateSessionInput struct {
	TrainerID uuid.UUID
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Notes     *string
	Capacity  *int
}

type SessionListFilter struct {
	// OrganizationID restricts results to sessions run by the
	// organization's trainers; handlers always set it from the caller.
	OrganizationID *uuid.UUID
	TrainerID      *uuid.UUID
	MemberID       *uuid.UUID
	From           *time.Time
	To             *time.Time
	Status         string
}

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(
	ctx context.Context,
	input CreateSessionInput,
) (*models.ClassSession, error) {
	query := `
		INSERT INTO class_sessions (trainer_id, title, start_time, end_time, status, notes, capacity)
		VALUES ($1, $2, $3, $4, 'scheduled', $5, $6)
		RETURNING id, trainer_id, title, start_time, end_time, status, notes, capacity, created_at, updated_at
	`

	var session models.ClassSession
	err := r.db.QueryRow(
		ctx,
		query,
		input.TrainerID,
		input.Title,
		input.StartTime,
		input.EndTime,
		input.Notes,
		input.Capacity,
	).Scan(
		&session.ID,
		&session.TrainerID,
		&session.Title,
		&session.StartTime,
		&session.EndTime,
		&session.Status,
		&session.Notes,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) CreateEnrollment(
	ctx context.Context,
	classID uuid.UUID,
	memberID uuid.UUID,
) (*models.ClassEnrollment, error) {
	query := `
		INSERT INTO class_enrollments (class_id, member_id, status)
		VALUES ($1, $2, 'booked')
		RETURNING id, class_id, member_id, status, created_at
	`
	var enrollment models.ClassEnrollment
	err := r.db.QueryRow(ctx, query, classID, memberID).Scan(
		&enrollment.ID,
		&enrollment.ClassID,
		&enrollment.MemberID,
		&enrollment.Status,
		&enrollment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *SessionRepository) GetByID(
	ctx context.Context,
	sessionID uuid.UUID,
) (*models.ClassSession, error) {
	query := `
		SELECT id, trainer_id, title, start_time, end_time, status, notes, capacity, created_at, updated_at
		FROM class_sessions
		WHERE id = $1
	`
	var session models.ClassSession
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.TrainerID,
		&session.Title,
		&session.StartTime,
		&session.EndTime,
		&session.Status,
		&session.Notes,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) GetDetail(
	ctx context.Context,
	sessionID uuid.UUID,
) (*models.SessionDetail, error) {
	query := `
		SELECT s.id, s.trainer_id, s.title, s.start_time, s.end_time, s.status, s.notes, s.capacity,
		       s.created_at, s.updated_at,
		       COALESCE(TRIM(CONCAT(p.first_name, ' ', p.last_name)), ''),
		       e.member_id, COALESCE(m.name, '')
		FROM class_sessions s
		LEFT JOIN profiles p ON p.id = s.trainer_id
		LEFT JOIN class_enrollments e ON e.class_id = s.id AND e.status = 'booked'
		LEFT JOIN members m ON m.id = e.member_id
		WHERE s.id = $1
		LIMIT 1
	`
	var detail models.SessionDetail
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&detail.ID,
		&detail.TrainerID,
		&detail.Title,
		&detail.StartTime,
		&detail.EndTime,
		&detail.Status,
		&detail.Notes,
		&detail.Capacity,
		&detail.CreatedAt,
		&detail.UpdatedAt,
		&detail.TrainerName,
		&detail.MemberID,
		&detail.MemberName,
	)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *SessionRepository) List(
	ctx context.Context,
	filter SessionListFilter,
) ([]models.SessionDetail, error) {
	args := []any{}
	whereParts := []string{"TRUE"}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		whereParts = append(whereParts, fmt.Sprintf("p.organization_id = $%d", len(args)))
	}
	if filter.TrainerID != nil {
		args = append(args, *filter.TrainerID)
		whereParts = append(whereParts, fmt.Sprintf("s.trainer_id = $%d", len(args)))
	}
	if filter.MemberID != nil {
		args = append(args, *filter.MemberID)
		whereParts = append(whereParts, fmt.Sprintf("e.member_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		whereParts = append(whereParts, fmt.Sprintf("s.start_time >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		whereParts = append(whereParts, fmt.Sprintf("s.start_time < $%d", len(args)))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		args = append(args, status)
		whereParts = append(whereParts, fmt.Sprintf("s.status = $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT s.id, s.trainer_id, s.title, s.start_time, s.end_time, s.status, s.notes, s.capacity,
		       s.created_at, s.updated_at,
		       COALESCE(TRIM(CONCAT(p.first_name, ' ', p.last_name)), ''),
		       e.member_id, COALESCE(m.name, '')
		FROM class_sessions s
		LEFT JOIN profiles p ON p.id = s.trainer_id
		LEFT JOIN class_enrollments e ON e.class_id = s.id AND e.status = 'booked'
		LEFT JOIN members m ON m.id = e.member_id
		WHERE %s
		ORDER BY s.start_time ASC, s.id ASC
	`, strings.Join(whereParts, " AND "))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.SessionDetail, 0)
	for rows.Next() {
		var detail models.SessionDetail
		if err := rows.Scan(
			&detail.ID,
			&detail.TrainerID,
			&detail.Title,
			&detail.StartTime,
			&detail.EndTime,
			&detail.Status,
			&detail.Notes,
			&detail.Capacity,
			&detail.CreatedAt,
			&detail.UpdatedAt,
			&detail.TrainerName,
			&detail.MemberID,
			&detail.MemberName,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// ListOverlapping returns the trainer's non-cancelled sessions whose interval
// strictly overlaps [start, end). Sessions that only touch an endpoint are not
// returned.
func (r *SessionRepository) ListOverlapping(
	ctx context.Context,
	trainerID uuid.UUID,
	start time.Time,
	end time.Time,
) ([]models.SessionConflict, error) {
	query := `
		SELECT s.id, s.title, s.start_time, s.end_time,
		       COALESCE(TRIM(CONCAT(p.first_name, ' ', p.last_name)), ''),
		       COALESCE(ARRAY_AGG(m.name) FILTER (WHERE m.name IS NOT NULL), '{}')
		FROM class_sessions s
		LEFT JOIN profiles p ON p.id = s.trainer_id
		LEFT JOIN class_enrollments e ON e.class_id = s.id AND e.status = 'booked'
		LEFT JOIN members m ON m.id = e.member_id
		WHERE s.trainer_id = $1
		  AND s.status <> 'cancelled'
		  AND s.start_time < $3
		  AND s.end_time > $2
		GROUP BY s.id, p.first_name, p.last_name
		ORDER BY s.start_time ASC
	`
	rows, err := r.db.Query(ctx, query, trainerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conflicts := make([]models.SessionConflict, 0)
	for rows.Next() {
		var conflict models.SessionConflict
		if err := rows.Scan(
			&conflict.SessionID,
			&conflict.Title,
			&conflict.StartTime,
			&conflict.EndTime,
			&conflict.TrainerName,
			&conflict.MemberNames,
		); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, conflict)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conflicts, nil
}

// GetOrganizationID resolves which organization a session belongs to through
// its trainer's profile. uuid.Nil means the trainer carries no organization.
func (r *SessionRepository) GetOrganizationID(
	ctx context.Context,
	sessionID uuid.UUID,
) (uuid.UUID, error) {
	query := `
		SELECT p.organization_id
		FROM class_sessions s
		JOIN profiles p ON p.id = s.trainer_id
		WHERE s.id = $1
	`
	var organizationID *uuid.UUID
	if err := r.db.QueryRow(ctx, query, sessionID).Scan(&organizationID); err != nil {
		return uuid.Nil, err
	}
	if organizationID == nil {
		return uuid.Nil, nil
	}
	return *organizationID, nil
}

func (r *SessionRepository) UpdateTimes(
	ctx context.Context,
	sessionID uuid.UUID,
	start time.Time,
	end time.Time,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET start_time = $2, end_time = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING id, trainer_id, title, start_time, end_time, status, notes, capacity, created_at, updated_at
	`
	var session models.ClassSession
	err := r.db.QueryRow(ctx, query, sessionID, start, end).Scan(
		&session.ID,
		&session.TrainerID,
		&session.Title,
		&session.StartTime,
		&session.EndTime,
		&session.Status,
		&session.Notes,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID uuid.UUID,
	currentStatus string,
	nextStatus string,
) (*models.ClassSession, error) {
	query := `
		UPDATE class_sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, trainer_id, title, start_time, end_time, status, notes, capacity, created_at, updated_at
	`
	var session models.ClassSession
	err := r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus).Scan(
		&session.ID,
		&session.TrainerID,
		&session.Title,
		&session.StartTime,
		&session.EndTime,
		&session.Status,
		&session.Notes,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetBookedEnrollment returns the booked enrollment attributing a session to
// a member, if one exists.
func (r *SessionRepository) GetBookedEnrollment(
	ctx context.Context,
	classID uuid.UUID,
) (*models.ClassEnrollment, error) {
	query := `
		SELECT id, class_id, member_id, status, created_at
		FROM class_enrollments
		WHERE class_id = $1 AND status = 'booked'
		ORDER BY created_at ASC
		LIMIT 1
	`
	var enrollment models.ClassEnrollment
	err := r.db.QueryRow(ctx, query, classID).Scan(
		&enrollment.ID,
		&enrollment.ClassID,
		&enrollment.MemberID,
		&enrollment.Status,
		&enrollment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM class_sessions WHERE id = $1`, sessionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteFutureScheduledByMember removes every still-scheduled future session
// the member is booked into, regardless of which recurrence batch created it.
// Enrollments go with the sessions via ON DELETE CASCADE.
func (r *SessionRepository) DeleteFutureScheduledByMember(
	ctx context.Context,
	memberID uuid.UUID,
	after time.Time,
) (int64, error) {
	query := `
		DELETE FROM class_sessions
		WHERE status = 'scheduled'
		  AND start_time > $2
		  AND id IN (
			SELECT class_id FROM class_enrollments
			WHERE member_id = $1 AND status = 'booked'
		  )
	`
	tag, err := r.db.Exec(ctx, query, memberID, after)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
