package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rks020/ptbodychange/internal/models"
)

type ScheduleSlot struct {
	Start time.Time
	End   time.Time
}

type CreateScheduleBatchInput struct {
	TrainerID uuid.UUID
	MemberID  uuid.UUID
	Title     string
	Notes     *string
	Slots     []ScheduleSlot
	// Force skips the in-lock conflict re-check; the caller has already
	// confirmed creation over the reported conflicts.
	Force bool
}

// ScheduleStore owns the session writes that span more than one table. Batch
// creation serializes per trainer with an advisory lock so two concurrent
// schedule requests cannot both pass the conflict check before either
// commits; completion couples the status flip with the credit consumption.
type ScheduleStore struct {
	pool *pgxpool.Pool
}

func NewScheduleStore(pool *pgxpool.Pool) *ScheduleStore {
	return &ScheduleStore{pool: pool}
}

// CreateBatch inserts one session plus its enrollment per slot inside a
// single transaction. Unless input.Force is set, the conflict check reruns
// under the trainer lock; any hits abort the batch and are returned with no
// rows written. A non-nil error alongside a positive count means sessions
// were created before the fault; the rollback reclaims them.
func (s *ScheduleStore) CreateBatch(
	ctx context.Context,
	input CreateScheduleBatchInput,
) (int, []models.SessionConflict, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(
		ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))",
		input.TrainerID,
	); err != nil {
		return 0, nil, err
	}

	txRepo := NewSessionRepository(tx)

	if !input.Force {
		seen := make(map[uuid.UUID]bool)
		conflicts := make([]models.SessionConflict, 0)
		for _, slot := range input.Slots {
			overlapping, err := txRepo.ListOverlapping(ctx, input.TrainerID, slot.Start, slot.End)
			if err != nil {
				return 0, nil, err
			}
			for _, conflict := range overlapping {
				if seen[conflict.SessionID] {
					continue
				}
				seen[conflict.SessionID] = true
				conflicts = append(conflicts, conflict)
			}
		}
		if len(conflicts) > 0 {
			return 0, conflicts, nil
		}
	}

	created := 0
	for _, slot := range input.Slots {
		session, err := txRepo.Create(ctx, CreateSessionInput{
			TrainerID: input.TrainerID,
			Title:     input.Title,
			StartTime: slot.Start,
			EndTime:   slot.End,
			Notes:     input.Notes,
		})
		if err != nil {
			return created, nil, err
		}
		if _, err := txRepo.CreateEnrollment(ctx, session.ID, input.MemberID); err != nil {
			return created + 1, nil, err
		}
		created++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}

	return created, nil, nil
}

// CompleteWithCredit flips a scheduled session to completed and consumes one
// credit of the booked member in the same transaction, so a failed credit
// write rolls the status back and the completion stays retryable. The
// compare-and-set miss surfaces as pgx.ErrNoRows for the caller to classify.
// A session with no enrollment completes without moving a credit.
func (s *ScheduleStore) CompleteWithCredit(
	ctx context.Context,
	sessionID uuid.UUID,
) (*models.ClassSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txRepo := NewSessionRepository(tx)

	session, err := txRepo.UpdateStatusIfCurrent(ctx, sessionID, "scheduled", "completed")
	if err != nil {
		return nil, err
	}

	enrollment, err := txRepo.GetBookedEnrollment(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return session, tx.Commit(ctx)
		}
		return nil, err
	}

	if err := NewMemberRepository(tx).IncrementUsedSessions(ctx, enrollment.MemberID); err != nil {
		return nil, err
	}

	return session, tx.Commit(ctx)
}
