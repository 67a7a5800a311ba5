package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

var (
	testDBOnce sync.Once
	testDBPool *pgxpool.Pool
	testDBErr  error
)

func TestListOverlappingUsesStrictBounds(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	repo := NewSessionRepository(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	nineToTen := createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 2, 3, 9, 0, 0, 0, time.UTC),
		time.Date(2031, 2, 3, 10, 0, 0, 0, time.UTC),
		"scheduled",
	)

	// A candidate starting exactly when the existing session ends does not
	// overlap.
	conflicts, err := repo.ListOverlapping(ctx, trainerID,
		time.Date(2031, 2, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2031, 2, 3, 11, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ListOverlapping touching: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for touching intervals, got %+v", conflicts)
	}

	// Same for a candidate ending exactly when the existing session starts.
	conflicts, err = repo.ListOverlapping(ctx, trainerID,
		time.Date(2031, 2, 3, 8, 0, 0, 0, time.UTC),
		time.Date(2031, 2, 3, 9, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ListOverlapping touching start: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected no conflicts for touching intervals, got %+v", conflicts)
	}

	conflicts, err = repo.ListOverlapping(ctx, trainerID,
		time.Date(2031, 2, 3, 9, 30, 0, 0, time.UTC),
		time.Date(2031, 2, 3, 10, 30, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ListOverlapping overlapping: %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].SessionID != nineToTen {
		t.Fatalf("expected conflict with session %s, got %+v", nineToTen, conflicts)
	}
}

func TestListOverlappingIgnoresCancelledSessions(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	repo := NewSessionRepository(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 3, 5, 14, 0, 0, 0, time.UTC),
		time.Date(2031, 3, 5, 15, 0, 0, 0, time.UTC),
		"cancelled",
	)

	conflicts, err := repo.ListOverlapping(ctx, trainerID,
		time.Date(2031, 3, 5, 14, 0, 0, 0, time.UTC),
		time.Date(2031, 3, 5, 15, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ListOverlapping: %v", err)
	}
	if len(conflicts) != 0 {
		t.Fatalf("expected cancelled session to be ignored, got %+v", conflicts)
	}
}

func TestCreateBatchRechecksConflictsUnderLock(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	store := NewScheduleStore(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	existing := createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 4, 7, 9, 0, 0, 0, time.UTC),
		time.Date(2031, 4, 7, 10, 0, 0, 0, time.UTC),
		"scheduled",
	)

	input := CreateScheduleBatchInput{
		TrainerID: trainerID,
		MemberID:  memberID,
		Title:     "Personal Session",
		Slots: []ScheduleSlot{
			{
				Start: time.Date(2031, 4, 7, 9, 30, 0, 0, time.UTC),
				End:   time.Date(2031, 4, 7, 10, 30, 0, 0, time.UTC),
			},
			{
				Start: time.Date(2031, 4, 14, 9, 30, 0, 0, time.UTC),
				End:   time.Date(2031, 4, 14, 10, 30, 0, 0, time.UTC),
			},
		},
	}

	created, conflicts, err := store.CreateBatch(ctx, input)
	if err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected no sessions created on conflict, got %d", created)
	}
	if len(conflicts) != 1 || conflicts[0].SessionID != existing {
		t.Fatalf("expected conflict with %s, got %+v", existing, conflicts)
	}
	if got := countTrainerSessions(t, ctx, pool, trainerID); got != 1 {
		t.Fatalf("expected only the pre-existing session, found %d", got)
	}

	input.Force = true
	created, conflicts, err = store.CreateBatch(ctx, input)
	if err != nil {
		t.Fatalf("forced CreateBatch: %v", err)
	}
	if created != 2 || len(conflicts) != 0 {
		t.Fatalf("expected 2 forced creations, got created=%d conflicts=%+v", created, conflicts)
	}
	if got := countTrainerSessions(t, ctx, pool, trainerID); got != 3 {
		t.Fatalf("expected 3 sessions after forced batch, found %d", got)
	}
}

func TestCompleteWithCreditConsumesExactlyOneCredit(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	store := NewScheduleStore(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	sessionID := createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 5, 12, 9, 0, 0, 0, time.UTC),
		time.Date(2031, 5, 12, 10, 0, 0, 0, time.UTC),
		"scheduled",
	)
	enrollTestMember(t, ctx, pool, sessionID, memberID)

	session, err := store.CompleteWithCredit(ctx, sessionID)
	if err != nil {
		t.Fatalf("CompleteWithCredit: %v", err)
	}
	if session.Status != "completed" {
		t.Fatalf("expected completed status, got %q", session.Status)
	}
	if got := memberUsedSessions(t, ctx, pool, memberID); got != 1 {
		t.Fatalf("expected one credit consumed, used count is %d", got)
	}

	// A second attempt misses the compare-and-set and must not move another
	// credit.
	if _, err := store.CompleteWithCredit(ctx, sessionID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows on repeat completion, got %v", err)
	}
	if got := memberUsedSessions(t, ctx, pool, memberID); got != 1 {
		t.Fatalf("expected used count to stay at 1, got %d", got)
	}
}

func TestCompleteWithCreditWithoutEnrollment(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	store := NewScheduleStore(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	sessionID := createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 5, 19, 9, 0, 0, 0, time.UTC),
		time.Date(2031, 5, 19, 10, 0, 0, 0, time.UTC),
		"scheduled",
	)

	session, err := store.CompleteWithCredit(ctx, sessionID)
	if err != nil {
		t.Fatalf("CompleteWithCredit: %v", err)
	}
	if session.Status != "completed" {
		t.Fatalf("expected completed status, got %q", session.Status)
	}
	if got := memberUsedSessions(t, ctx, pool, memberID); got != 0 {
		t.Fatalf("expected no credit movement without enrollment, got %d", got)
	}
}

func TestCompleteWithCreditRejectsCancelledSessions(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	store := NewScheduleStore(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	sessionID := createTestSession(t, ctx, pool, trainerID,
		time.Date(2031, 5, 26, 9, 0, 0, 0, time.UTC),
		time.Date(2031, 5, 26, 10, 0, 0, 0, time.UTC),
		"cancelled",
	)
	enrollTestMember(t, ctx, pool, sessionID, memberID)

	if _, err := store.CompleteWithCredit(ctx, sessionID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows for cancelled session, got %v", err)
	}
	if got := memberUsedSessions(t, ctx, pool, memberID); got != 0 {
		t.Fatalf("expected no credit movement, got %d", got)
	}
}

func integrationTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	testDBOnce.Do(func() {
		_ = godotenv.Load(".env")
		_ = godotenv.Load(filepath.Join("..", "..", ".env"))

		dbURL := os.Getenv("DB_URL")
		if dbURL == "" {
			testDBErr = fmt.Errorf("DB_URL is not set")
			return
		}

		cfg, err := pgxpool.ParseConfig(dbURL)
		if err != nil {
			testDBErr = err
			return
		}

		testDBPool, testDBErr = pgxpool.NewWithConfig(context.Background(), cfg)
		if testDBErr != nil {
			return
		}
		testDBErr = testDBPool.Ping(context.Background())
	})

	if testDBErr != nil {
		t.Skipf("skipping integration test: %v", testDBErr)
	}
	return testDBPool
}

func createTestTrainer(t *testing.T, ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, uuid.UUID) {
	t.Helper()

	var orgID uuid.UUID
	err := pool.QueryRow(ctx,
		"INSERT INTO organizations (name) VALUES ($1) RETURNING id",
		fmt.Sprintf("schedule-test-%d", time.Now().UnixNano()),
	).Scan(&orgID)
	if err != nil {
		t.Fatalf("insert organization: %v", err)
	}

	trainerID := uuid.New()
	_, err = pool.Exec(ctx,
		"INSERT INTO profiles (id, organization_id, role, first_name, last_name) VALUES ($1, $2, 'trainer', 'Test', 'Trainer')",
		trainerID, orgID,
	)
	if err != nil {
		t.Fatalf("insert trainer profile: %v", err)
	}
	return orgID, trainerID
}

func createTestMember(t *testing.T, ctx context.Context, pool *pgxpool.Pool, orgID, trainerID uuid.UUID) uuid.UUID {
	t.Helper()

	member, err := NewMemberRepository(pool).Create(ctx, CreateMemberInput{
		ID:             uuid.New(),
		OrganizationID: orgID,
		TrainerID:      &trainerID,
		Name:           "Test Member",
		SessionCount:   20,
	})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	return member.ID
}

func createTestSession(t *testing.T, ctx context.Context, pool *pgxpool.Pool, trainerID uuid.UUID, start, end time.Time, status string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(ctx,
		"INSERT INTO class_sessions (trainer_id, start_time, end_time, status) VALUES ($1, $2, $3, $4) RETURNING id",
		trainerID, start, end, status,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return id
}

func enrollTestMember(t *testing.T, ctx context.Context, pool *pgxpool.Pool, sessionID, memberID uuid.UUID) {
	t.Helper()

	if _, err := pool.Exec(ctx,
		"INSERT INTO class_enrollments (class_id, member_id, status) VALUES ($1, $2, 'booked')",
		sessionID, memberID,
	); err != nil {
		t.Fatalf("insert enrollment: %v", err)
	}
}

func memberUsedSessions(t *testing.T, ctx context.Context, pool *pgxpool.Pool, memberID uuid.UUID) int {
	t.Helper()

	var used int
	if err := pool.QueryRow(ctx,
		"SELECT used_session_count FROM members WHERE id = $1", memberID,
	).Scan(&used); err != nil {
		t.Fatalf("read used session count: %v", err)
	}
	return used
}

func countTrainerSessions(t *testing.T, ctx context.Context, pool *pgxpool.Pool, trainerID uuid.UUID) int {
	t.Helper()

	var count int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM class_sessions WHERE trainer_id = $1", trainerID,
	).Scan(&count); err != nil {
		t.Fatalf("count sessions: %v", err)
	}
	return count
}

func cleanupTestOrganization(t *testing.T, ctx context.Context, pool *pgxpool.Pool, orgID uuid.UUID) {
	t.Helper()

	if _, err := pool.Exec(ctx,
		"DELETE FROM class_sessions WHERE trainer_id IN (SELECT id FROM profiles WHERE organization_id = $1)", orgID,
	); err != nil {
		t.Fatalf("cleanup sessions: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM members WHERE organization_id = $1", orgID); err != nil {
		t.Fatalf("cleanup members: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM profiles WHERE organization_id = $1", orgID); err != nil {
		t.Fatalf("cleanup profiles: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM organizations WHERE id = $1", orgID); err != nil {
		t.Fatalf("cleanup organization: %v", err)
	}
}
