package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/identity"
	"github.com/rks020/ptbodychange/internal/models"
)

type stubProfileStore struct {
	profiles map[uuid.UUID]*models.Profile
	listed   []models.Profile
	listErr  error
	deleted  []uuid.UUID
	delErr   map[uuid.UUID]error
}

func (s *stubProfileStore) GetByID(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return profile, nil
}

func (s *stubProfileStore) ListByOrganization(_ context.Context, _ uuid.UUID) ([]models.Profile, error) {
	return s.listed, s.listErr
}

func (s *stubProfileStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	if err := s.delErr[id]; err != nil {
		return 0, err
	}
	s.deleted = append(s.deleted, id)
	if _, ok := s.profiles[id]; !ok {
		return 0, nil
	}
	delete(s.profiles, id)
	return 1, nil
}

type stubRowEraser struct {
	deleted []uuid.UUID
	err     error
}

func (s *stubRowEraser) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.deleted = append(s.deleted, id)
	return 1, nil
}

func (s *stubRowEraser) DeleteByUserID(_ context.Context, id uuid.UUID) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.deleted = append(s.deleted, id)
	return 1, nil
}

type stubIdentityAdmin struct {
	users      map[string]*identity.User
	deleted    []string
	deleteErr  map[string]error
	invited    []string
	lastInvite map[string]any
	updated    []string
	lastUpdate map[string]any
	updateErr  error
}

func (s *stubIdentityAdmin) GetUserByID(_ context.Context, userID string) (*identity.User, error) {
	return s.users[userID], nil
}

func (s *stubIdentityAdmin) DeleteUser(_ context.Context, userID string) error {
	if err := s.deleteErr[userID]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, userID)
	return nil
}

func (s *stubIdentityAdmin) UpdateUserByID(_ context.Context, userID string, attrs map[string]any) (*identity.User, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = append(s.updated, userID)
	s.lastUpdate = attrs
	return &identity.User{ID: userID}, nil
}

func (s *stubIdentityAdmin) InviteByEmail(_ context.Context, email string, data map[string]any) (*identity.User, error) {
	s.invited = append(s.invited, email)
	s.lastInvite = data
	return &identity.User{ID: uuid.NewString(), Email: email}, nil
}

func ownerProfile(orgID uuid.UUID) *models.Profile {
	return &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "owner"}
}

type accountFixture struct {
	service  *AccountService
	profiles *stubProfileStore
	members  *stubRowEraser
	tokens   *stubRowEraser
	orgs     *stubRowEraser
	identity *stubIdentityAdmin
}

func newAccountFixture(caller *models.Profile) accountFixture {
	profiles := &stubProfileStore{
		profiles: map[uuid.UUID]*models.Profile{caller.ID: caller},
		delErr:   map[uuid.UUID]error{},
	}
	members := &stubRowEraser{}
	tokens := &stubRowEraser{}
	identityStub := &stubIdentityAdmin{users: map[string]*identity.User{}, deleteErr: map[string]error{}}
	orgs := &stubRowEraser{}
	service := NewAccountService(profiles, members, tokens, orgs, identityStub)
	return accountFixture{
		service:  service,
		profiles: profiles,
		members:  members,
		tokens:   tokens,
		orgs:     orgs,
		identity: identityStub,
	}
}

func TestDeleteUserErasesEverythingInOrder(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	target := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target

	if err := fx.service.DeleteUser(context.Background(), caller.ID, target.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if len(fx.tokens.deleted) != 1 || fx.tokens.deleted[0] != target.ID {
		t.Fatalf("expected push tokens erased for target, got %v", fx.tokens.deleted)
	}
	if len(fx.members.deleted) != 1 {
		t.Fatalf("expected member row erased, got %v", fx.members.deleted)
	}
	if len(fx.profiles.deleted) != 1 || fx.profiles.deleted[0] != target.ID {
		t.Fatalf("expected profile erased, got %v", fx.profiles.deleted)
	}
	if len(fx.identity.deleted) != 1 || fx.identity.deleted[0] != target.ID.String() {
		t.Fatalf("expected identity account erased last, got %v", fx.identity.deleted)
	}
}

func TestDeleteUserIsIdempotent(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	target := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target

	if err := fx.service.DeleteUser(context.Background(), caller.ID, target.ID); err != nil {
		t.Fatalf("first DeleteUser: %v", err)
	}
	// The target's rows are gone and the identity lookup is empty, so the
	// second delete treats the target as orphaned and succeeds with no-ops.
	if err := fx.service.DeleteUser(context.Background(), caller.ID, target.ID); err != nil {
		t.Fatalf("second DeleteUser: %v", err)
	}
}

func TestDeleteUserForbidsCrossOrganizationTargets(t *testing.T) {
	caller := ownerProfile(uuid.New())
	fx := newAccountFixture(caller)

	otherOrg := uuid.New()
	target := &models.Profile{ID: uuid.New(), OrganizationID: &otherOrg, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target

	err := fx.service.DeleteUser(context.Background(), caller.ID, target.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(fx.profiles.deleted) != 0 {
		t.Fatal("expected no rows touched on a forbidden delete")
	}
}

func TestDeleteUserForbidsNonAdminCallers(t *testing.T) {
	orgID := uuid.New()
	caller := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx := newAccountFixture(caller)

	err := fx.service.DeleteUser(context.Background(), caller.ID, uuid.New())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for trainer caller, got %v", err)
	}
}

func TestDeleteUserFindsOrganizationInIdentityMetadata(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	// Target has no profile row but the identity account still carries the
	// organization claim.
	targetID := uuid.New()
	fx.identity.users[targetID.String()] = &identity.User{
		ID:          targetID.String(),
		AppMetadata: map[string]any{"organization_id": orgID.String()},
	}

	if err := fx.service.DeleteUser(context.Background(), caller.ID, targetID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(fx.identity.deleted) != 1 {
		t.Fatalf("expected identity account erased, got %v", fx.identity.deleted)
	}
}

func TestDeleteUserAcceptsMetadataOrganizationMatch(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	// Target's profile row points at another organization, but the identity
	// account still carries the caller's organization claim. Either reference
	// matching authorizes the deletion.
	staleOrg := uuid.New()
	target := &models.Profile{ID: uuid.New(), OrganizationID: &staleOrg, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target
	fx.identity.users[target.ID.String()] = &identity.User{
		ID:          target.ID.String(),
		AppMetadata: map[string]any{"organization_id": orgID.String()},
	}

	if err := fx.service.DeleteUser(context.Background(), caller.ID, target.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if len(fx.identity.deleted) != 1 || fx.identity.deleted[0] != target.ID.String() {
		t.Fatalf("expected identity account erased, got %v", fx.identity.deleted)
	}
}

func TestUpdateUserBuildsNameMetadata(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	target := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target

	err := fx.service.UpdateUser(context.Background(), caller.ID, target.ID, UpdateUserInput{
		Email:     "new.address@example.com",
		FirstName: "Mina",
		LastName:  "Okafor",
	})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	if len(fx.identity.updated) != 1 || fx.identity.updated[0] != target.ID.String() {
		t.Fatalf("expected identity update for target, got %v", fx.identity.updated)
	}
	if fx.identity.lastUpdate["email"] != "new.address@example.com" {
		t.Fatalf("expected email attribute, got %v", fx.identity.lastUpdate["email"])
	}
	meta, ok := fx.identity.lastUpdate["user_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected user_metadata map, got %v", fx.identity.lastUpdate["user_metadata"])
	}
	if meta["first_name"] != "Mina" || meta["last_name"] != "Okafor" {
		t.Fatalf("expected name fields in metadata, got %v", meta)
	}
	if meta["full_name"] != "Mina Okafor" || meta["display_name"] != "Mina Okafor" {
		t.Fatalf("expected combined display names, got %v", meta)
	}
}

func TestUpdateUserForbidsCrossOrganizationTargets(t *testing.T) {
	caller := ownerProfile(uuid.New())
	fx := newAccountFixture(caller)

	otherOrg := uuid.New()
	target := &models.Profile{ID: uuid.New(), OrganizationID: &otherOrg, Role: "trainer"}
	fx.profiles.profiles[target.ID] = target

	err := fx.service.UpdateUser(context.Background(), caller.ID, target.ID, UpdateUserInput{FirstName: "Sam"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(fx.identity.updated) != 0 {
		t.Fatal("expected no identity update on a forbidden edit")
	}
}

func TestUpdateUserForbidsNonAdminCallers(t *testing.T) {
	orgID := uuid.New()
	caller := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx := newAccountFixture(caller)

	err := fx.service.UpdateUser(context.Background(), caller.ID, uuid.New(), UpdateUserInput{FirstName: "Sam"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for trainer caller, got %v", err)
	}
}

func TestUpdateUserUnknownTargetIsNotFound(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	err := fx.service.UpdateUser(context.Background(), caller.ID, uuid.New(), UpdateUserInput{FirstName: "Sam"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateUserRejectsEmptyInput(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	err := fx.service.UpdateUser(context.Background(), caller.ID, uuid.New(), UpdateUserInput{})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestDeleteOrganizationContinuesPastUserFailures(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	good := models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	bad := models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "trainer"}
	fx.profiles.profiles[good.ID] = &good
	fx.profiles.profiles[bad.ID] = &bad
	fx.profiles.listed = []models.Profile{*caller, good, bad}
	fx.identity.deleteErr[bad.ID.String()] = errors.New("identity provider unavailable")

	result, err := fx.service.DeleteOrganization(context.Background(), caller.ID)
	if err != nil {
		t.Fatalf("DeleteOrganization: %v", err)
	}

	if result.AttemptedCount != 3 {
		t.Fatalf("expected 3 attempted deletions, got %d", result.AttemptedCount)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 failure reported, got %d", len(result.Errors))
	}
	if result.Errors[0].UserID != bad.ID {
		t.Fatalf("expected failure recorded for %s, got %s", bad.ID, result.Errors[0].UserID)
	}
	// The two healthy accounts and the organization row are still gone.
	if len(fx.identity.deleted) != 2 {
		t.Fatalf("expected 2 identity deletions, got %d", len(fx.identity.deleted))
	}
	if len(fx.orgs.deleted) != 1 || fx.orgs.deleted[0] != orgID {
		t.Fatalf("expected organization row deleted, got %v", fx.orgs.deleted)
	}
}

func TestDeleteOrganizationRequiresOwner(t *testing.T) {
	orgID := uuid.New()
	caller := &models.Profile{ID: uuid.New(), OrganizationID: &orgID, Role: "admin"}
	fx := newAccountFixture(caller)

	_, err := fx.service.DeleteOrganization(context.Background(), caller.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for admin caller, got %v", err)
	}
}

func TestInviteUserStampsCallerOrganization(t *testing.T) {
	orgID := uuid.New()
	caller := ownerProfile(orgID)
	fx := newAccountFixture(caller)

	_, err := fx.service.InviteUser(context.Background(), caller.ID, "new.trainer@example.com", map[string]any{
		"role":            "trainer",
		"organization_id": "spoofed-org",
	})
	if err != nil {
		t.Fatalf("InviteUser: %v", err)
	}

	if fx.identity.lastInvite["organization_id"] != orgID.String() {
		t.Fatalf("expected caller's organization in invite data, got %v", fx.identity.lastInvite["organization_id"])
	}
	if fx.identity.lastInvite["role"] != "trainer" {
		t.Fatalf("expected role attribute preserved, got %v", fx.identity.lastInvite["role"])
	}
}
