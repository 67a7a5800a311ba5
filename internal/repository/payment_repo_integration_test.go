package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestPaymentWritesStayInsideOrganization(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	repo := NewPaymentRepository(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	otherOrgID, otherTrainerID := createTestTrainer(t, ctx, pool)
	otherMemberID := createTestMember(t, ctx, pool, otherOrgID, otherTrainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, otherOrgID) })

	payment, err := repo.Create(ctx, orgID, CreatePaymentInput{
		MemberID: memberID,
		Amount:   120,
		Type:     "cash",
		Category: "package_renewal",
		Date:     time.Date(2031, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A member of another organization is invisible to this one.
	_, err = repo.Create(ctx, orgID, CreatePaymentInput{
		MemberID: otherMemberID,
		Amount:   80,
		Type:     "cash",
		Category: "other",
		Date:     time.Date(2031, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows creating for a foreign member, got %v", err)
	}

	// So is an existing payment, for both update and delete.
	_, err = repo.Update(ctx, otherOrgID, payment.ID, UpdatePaymentInput{
		Amount:   1,
		Type:     "transfer",
		Category: "extra",
	})
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows updating across organizations, got %v", err)
	}

	deleted, err := repo.Delete(ctx, otherOrgID, payment.ID)
	if err != nil {
		t.Fatalf("Delete across organizations: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected no rows deleted across organizations, got %d", deleted)
	}

	deleted, err = repo.Delete(ctx, orgID, payment.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected the owning organization to delete its payment, got %d", deleted)
	}
}

func TestListByOrganizationPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	repo := NewPaymentRepository(pool)

	orgID, trainerID := createTestTrainer(t, ctx, pool)
	memberID := createTestMember(t, ctx, pool, orgID, trainerID)
	t.Cleanup(func() { cleanupTestOrganization(t, ctx, pool, orgID) })

	for day := 1; day <= 3; day++ {
		_, err := repo.Create(ctx, orgID, CreatePaymentInput{
			MemberID: memberID,
			Amount:   float64(day * 10),
			Type:     "cash",
			Category: "single_session",
			Date:     time.Date(2031, 7, day, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Create payment %d: %v", day, err)
		}
	}

	total, err := repo.CountByOrganization(ctx, orgID)
	if err != nil {
		t.Fatalf("CountByOrganization: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 payments, got %d", total)
	}

	page, err := repo.ListByOrganization(ctx, orgID, 2, 0)
	if err != nil {
		t.Fatalf("ListByOrganization: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected first page of 2, got %d", len(page))
	}
	if !page[0].Date.After(page[1].Date) {
		t.Fatalf("expected newest first, got %v then %v", page[0].Date, page[1].Date)
	}

	rest, err := repo.ListByOrganization(ctx, orgID, 2, 2)
	if err != nil {
		t.Fatalf("ListByOrganization offset: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 payment on the second page, got %d", len(rest))
	}
}
