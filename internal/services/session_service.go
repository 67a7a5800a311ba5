package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/repository"
)

const (
	DeleteModeSingle  = "single"
	DeleteModeProgram = "program"
)

type sessionStore interface {
	GetByID(ctx context.Context, sessionID uuid.UUID) (*models.ClassSession, error)
	GetDetail(ctx context.Context, sessionID uuid.UUID) (*models.SessionDetail, error)
	GetOrganizationID(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error)
	List(ctx context.Context, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	UpdateTimes(ctx context.Context, sessionID uuid.UUID, start, end time.Time) (*models.ClassSession, error)
	UpdateStatusIfCurrent(ctx context.Context, sessionID uuid.UUID, currentStatus, nextStatus string) (*models.ClassSession, error)
	GetBookedEnrollment(ctx context.Context, classID uuid.UUID) (*models.ClassEnrollment, error)
	Delete(ctx context.Context, sessionID uuid.UUID) (int64, error)
	DeleteFutureScheduledByMember(ctx context.Context, memberID uuid.UUID, after time.Time) (int64, error)
}

// sessionCompleter runs the status flip and the member credit write in one
// transaction.
type sessionCompleter interface {
	CompleteWithCredit(ctx context.Context, sessionID uuid.UUID) (*models.ClassSession, error)
}

type SessionService struct {
	sessions    sessionStore
	completions sessionCompleter
	now         func() time.Time
}

func NewSessionService(sessions sessionStore, completions sessionCompleter) *SessionService {
	return &SessionService{
		sessions:    sessions,
		completions: completions,
		now:         time.Now,
	}
}

func (s *SessionService) ListSessions(
	ctx context.Context,
	filter repository.SessionListFilter,
) ([]models.SessionDetail, error) {
	return s.sessions.List(ctx, filter)
}

func (s *SessionService) GetSession(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
) (*models.SessionDetail, error) {
	if err := s.authorizeSession(ctx, organizationID, sessionID); err != nil {
		return nil, err
	}

	detail, err := s.sessions.GetDetail(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return detail, nil
}

// UpdateSessionTime reschedules a session. The create path checks conflicts;
// this path intentionally does not.
func (s *SessionService) UpdateSessionTime(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
	newStart time.Time,
	newEnd time.Time,
) (*models.ClassSession, error) {
	if !newEnd.After(newStart) {
		return nil, ErrInvalidInput
	}
	if err := s.authorizeSession(ctx, organizationID, sessionID); err != nil {
		return nil, err
	}

	session, err := s.sessions.UpdateTimes(ctx, sessionID, newStart, newEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return session, nil
}

// CompleteSession transitions scheduled -> completed and consumes one package
// credit of the booked member, atomically. A session with no enrollment still
// completes; no credit moves.
func (s *SessionService) CompleteSession(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
) (*models.ClassSession, error) {
	if err := s.authorizeSession(ctx, organizationID, sessionID); err != nil {
		return nil, err
	}

	session, err := s.completions.CompleteWithCredit(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyTransitionFailure(ctx, sessionID)
		}
		return nil, err
	}
	return session, nil
}

func (s *SessionService) CancelSession(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
) (*models.ClassSession, error) {
	if err := s.authorizeSession(ctx, organizationID, sessionID); err != nil {
		return nil, err
	}

	session, err := s.sessions.UpdateStatusIfCurrent(ctx, sessionID, "scheduled", "cancelled")
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyTransitionFailure(ctx, sessionID)
		}
		return nil, err
	}
	return session, nil
}

// authorizeSession confirms the session's trainer sits in the caller's
// organization. Sessions of other organizations are reported as absent, the
// way row-level security would hide them.
func (s *SessionService) authorizeSession(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
) error {
	sessionOrg, err := s.sessions.GetOrganizationID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if sessionOrg != organizationID {
		return ErrNotFound
	}
	return nil
}

// classifyTransitionFailure separates "session gone" from "session already
// terminal" after a compare-and-set miss.
func (s *SessionService) classifyTransitionFailure(ctx context.Context, sessionID uuid.UUID) error {
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return ErrInvalidStateTransition
}

// DeleteSession removes one session, or in program mode every future
// scheduled session booked by the same member across all recurrence batches.
// Returns how many sessions were removed.
func (s *SessionService) DeleteSession(
	ctx context.Context,
	organizationID uuid.UUID,
	sessionID uuid.UUID,
	mode string,
) (int64, error) {
	if mode != DeleteModeSingle && mode != DeleteModeProgram {
		return 0, ErrInvalidInput
	}
	if err := s.authorizeSession(ctx, organizationID, sessionID); err != nil {
		return 0, err
	}

	switch mode {
	case DeleteModeSingle:
		deleted, err := s.sessions.Delete(ctx, sessionID)
		if err != nil {
			return 0, err
		}
		if deleted == 0 {
			return 0, ErrNotFound
		}
		return deleted, nil

	case DeleteModeProgram:
		enrollment, err := s.sessions.GetBookedEnrollment(ctx, sessionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, ErrNotFound
			}
			return 0, err
		}
		return s.sessions.DeleteFutureScheduledByMember(ctx, enrollment.MemberID, s.now())

	default:
		return 0, ErrInvalidInput
	}
}
