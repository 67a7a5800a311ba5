package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/repository"
)

type stubSessionStore struct {
	session        *models.ClassSession
	detail         *models.SessionDetail
	organizationID uuid.UUID
	orgErr         error
	getErr         error
	updateErr      error
	casErr         error
	enrollment     *models.ClassEnrollment
	enrollmentErr  error
	deleteCount    int64
	deleteErr      error
	futureDeleted  int64
	lastCAS        [2]string
	lastDeleteID   uuid.UUID
	lastFutureMbr  uuid.UUID
	lastFutureTime time.Time
}

func (s *stubSessionStore) GetByID(_ context.Context, _ uuid.UUID) (*models.ClassSession, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.session, nil
}

func (s *stubSessionStore) GetDetail(_ context.Context, _ uuid.UUID) (*models.SessionDetail, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.detail, nil
}

func (s *stubSessionStore) GetOrganizationID(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	if s.orgErr != nil {
		return uuid.Nil, s.orgErr
	}
	return s.organizationID, nil
}

func (s *stubSessionStore) List(_ context.Context, _ repository.SessionListFilter) ([]models.SessionDetail, error) {
	return nil, nil
}

func (s *stubSessionStore) UpdateTimes(_ context.Context, _ uuid.UUID, start, end time.Time) (*models.ClassSession, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	updated := *s.session
	updated.StartTime = start
	updated.EndTime = end
	return &updated, nil
}

func (s *stubSessionStore) UpdateStatusIfCurrent(_ context.Context, _ uuid.UUID, currentStatus, nextStatus string) (*models.ClassSession, error) {
	s.lastCAS = [2]string{currentStatus, nextStatus}
	if s.casErr != nil {
		return nil, s.casErr
	}
	updated := *s.session
	updated.Status = nextStatus
	return &updated, nil
}

func (s *stubSessionStore) GetBookedEnrollment(_ context.Context, _ uuid.UUID) (*models.ClassEnrollment, error) {
	if s.enrollmentErr != nil {
		return nil, s.enrollmentErr
	}
	return s.enrollment, nil
}

func (s *stubSessionStore) Delete(_ context.Context, sessionID uuid.UUID) (int64, error) {
	s.lastDeleteID = sessionID
	return s.deleteCount, s.deleteErr
}

func (s *stubSessionStore) DeleteFutureScheduledByMember(_ context.Context, memberID uuid.UUID, after time.Time) (int64, error) {
	s.lastFutureMbr = memberID
	s.lastFutureTime = after
	return s.futureDeleted, nil
}

type stubCompleter struct {
	session *models.ClassSession
	errs    []error
	calls   int
}

func (s *stubCompleter) CompleteWithCredit(_ context.Context, _ uuid.UUID) (*models.ClassSession, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	completed := *s.session
	completed.Status = "completed"
	return &completed, nil
}

func scheduledSession() *models.ClassSession {
	return &models.ClassSession{
		ID:        uuid.New(),
		TrainerID: uuid.New(),
		Title:     "Personal Session",
		StartTime: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Status:    "scheduled",
	}
}

func TestCompleteSessionFlipsStatus(t *testing.T) {
	orgID := uuid.New()
	store := &stubSessionStore{session: scheduledSession(), organizationID: orgID}
	completer := &stubCompleter{session: store.session}
	service := NewSessionService(store, completer)

	session, err := service.CompleteSession(context.Background(), orgID, store.session.ID)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}

	if session.Status != "completed" {
		t.Fatalf("expected completed status, got %q", session.Status)
	}
	if completer.calls != 1 {
		t.Fatalf("expected one completion call, got %d", completer.calls)
	}
}

func TestCompleteSessionFailureLeavesSessionRetryable(t *testing.T) {
	orgID := uuid.New()
	store := &stubSessionStore{session: scheduledSession(), organizationID: orgID}
	completer := &stubCompleter{
		session: store.session,
		errs:    []error{errors.New("commit failed")},
	}
	service := NewSessionService(store, completer)

	if _, err := service.CompleteSession(context.Background(), orgID, store.session.ID); err == nil {
		t.Fatal("expected first completion to fail")
	}
	if store.session.Status != "scheduled" {
		t.Fatalf("failed completion must not change status, got %q", store.session.Status)
	}

	session, err := service.CompleteSession(context.Background(), orgID, store.session.ID)
	if err != nil {
		t.Fatalf("retry after failed completion: %v", err)
	}
	if session.Status != "completed" {
		t.Fatalf("expected retry to complete the session, got %q", session.Status)
	}
}

func TestCompleteSessionRejectsTerminalStates(t *testing.T) {
	orgID := uuid.New()
	cancelled := scheduledSession()
	cancelled.Status = "cancelled"
	store := &stubSessionStore{session: cancelled, organizationID: orgID}
	completer := &stubCompleter{session: cancelled, errs: []error{pgx.ErrNoRows}}
	service := NewSessionService(store, completer)

	_, err := service.CompleteSession(context.Background(), orgID, cancelled.ID)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestCompleteSessionMissingSessionIsNotFound(t *testing.T) {
	store := &stubSessionStore{orgErr: pgx.ErrNoRows}
	service := NewSessionService(store, &stubCompleter{})

	_, err := service.CompleteSession(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSessionOpsHideOtherOrganizations(t *testing.T) {
	store := &stubSessionStore{
		session:        scheduledSession(),
		detail:         &models.SessionDetail{},
		organizationID: uuid.New(),
		deleteCount:    1,
	}
	completer := &stubCompleter{session: store.session}
	service := NewSessionService(store, completer)
	foreignOrg := uuid.New()

	if _, err := service.GetSession(context.Background(), foreignOrg, store.session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSession across organizations: expected ErrNotFound, got %v", err)
	}
	if _, err := service.CompleteSession(context.Background(), foreignOrg, store.session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CompleteSession across organizations: expected ErrNotFound, got %v", err)
	}
	if _, err := service.CancelSession(context.Background(), foreignOrg, store.session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CancelSession across organizations: expected ErrNotFound, got %v", err)
	}
	start := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	if _, err := service.UpdateSessionTime(context.Background(), foreignOrg, store.session.ID, start, start.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateSessionTime across organizations: expected ErrNotFound, got %v", err)
	}
	if _, err := service.DeleteSession(context.Background(), foreignOrg, store.session.ID, DeleteModeSingle); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteSession across organizations: expected ErrNotFound, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("foreign-organization calls must not reach the completer, got %d", completer.calls)
	}
	if store.lastDeleteID != uuid.Nil {
		t.Fatal("foreign-organization delete must not reach the store")
	}
}

func TestCancelSessionTransitionsFromScheduledOnly(t *testing.T) {
	orgID := uuid.New()
	store := &stubSessionStore{session: scheduledSession(), organizationID: orgID}
	service := NewSessionService(store, &stubCompleter{})

	session, err := service.CancelSession(context.Background(), orgID, store.session.ID)
	if err != nil {
		t.Fatalf("CancelSession: %v", err)
	}

	if session.Status != "cancelled" {
		t.Fatalf("expected cancelled status, got %q", session.Status)
	}
	if store.lastCAS != [2]string{"scheduled", "cancelled"} {
		t.Fatalf("expected compare-and-set from scheduled, got %v", store.lastCAS)
	}
}

func TestUpdateSessionTimeRejectsInvertedRange(t *testing.T) {
	orgID := uuid.New()
	store := &stubSessionStore{session: scheduledSession(), organizationID: orgID}
	service := NewSessionService(store, &stubCompleter{})

	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	_, err := service.UpdateSessionTime(context.Background(), orgID, store.session.ID, start, start)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero-length session, got %v", err)
	}
}

func TestDeleteSessionSingleMode(t *testing.T) {
	orgID := uuid.New()
	store := &stubSessionStore{session: scheduledSession(), organizationID: orgID, deleteCount: 1}
	service := NewSessionService(store, &stubCompleter{})

	deleted, err := service.DeleteSession(context.Background(), orgID, store.session.ID, DeleteModeSingle)
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if store.lastDeleteID != store.session.ID {
		t.Fatal("expected delete to target the requested session")
	}
}

func TestDeleteSessionProgramModeRemovesFutureSessions(t *testing.T) {
	orgID := uuid.New()
	memberID := uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubSessionStore{
		session:        scheduledSession(),
		organizationID: orgID,
		enrollment:     &models.ClassEnrollment{ID: uuid.New(), MemberID: memberID, Status: "booked"},
		futureDeleted:  5,
	}
	service := NewSessionService(store, &stubCompleter{})
	service.now = func() time.Time { return now }

	deleted, err := service.DeleteSession(context.Background(), orgID, store.session.ID, DeleteModeProgram)
	if err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	if deleted != 5 {
		t.Fatalf("expected 5 deleted, got %d", deleted)
	}
	if store.lastFutureMbr != memberID {
		t.Fatal("expected program delete scoped to the enrolled member")
	}
	if !store.lastFutureTime.Equal(now) {
		t.Fatalf("expected cutoff at %v, got %v", now, store.lastFutureTime)
	}
}

func TestDeleteSessionRejectsUnknownMode(t *testing.T) {
	service := NewSessionService(&stubSessionStore{}, &stubCompleter{})

	_, err := service.DeleteSession(context.Background(), uuid.Nil, uuid.New(), "cascade")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
