package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/identity"
	"github.com/rks020/ptbodychange/internal/models"
)

type profileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Profile, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type memberEraser interface {
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type tokenEraser interface {
	DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}

type organizationStore interface {
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type identityAdmin interface {
	GetUserByID(ctx context.Context, userID string) (*identity.User, error)
	DeleteUser(ctx context.Context, userID string) error
	UpdateUserByID(ctx context.Context, userID string, attrs map[string]any) (*identity.User, error)
	InviteByEmail(ctx context.Context, email string, data map[string]any) (*identity.User, error)
}

// UserDeletionError records one user's failure during organization-wide
// erasure; the batch keeps going.
type UserDeletionError struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

type OrgDeletionResult struct {
	AttemptedCount int                 `json:"count"`
	Errors         []UserDeletionError `json:"errors,omitempty"`
}

// AccountService removes every trace of a user, or of a whole organization,
// across the data store and the identity subsystem.
type AccountService struct {
	profiles      profileStore
	members       memberEraser
	tokens        tokenEraser
	organizations organizationStore
	identity      identityAdmin
}

func NewAccountService(
	profiles profileStore,
	members memberEraser,
	tokens tokenEraser,
	organizations organizationStore,
	identityClient identityAdmin,
) *AccountService {
	return &AccountService{
		profiles:      profiles,
		members:       members,
		tokens:        tokens,
		organizations: organizations,
		identity:      identityClient,
	}
}

// DeleteUser erases targetID after authorizing the caller: role owner or
// admin, and the target must belong to the caller's organization — unless the
// target is orphaned (no organization reference anywhere), which any
// authorized caller may delete.
func (s *AccountService) DeleteUser(
	ctx context.Context,
	callerID uuid.UUID,
	targetID uuid.UUID,
) error {
	caller, err := s.callerProfile(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.Role != "owner" && caller.Role != "admin" {
		return ErrForbidden
	}

	profileOrg, metaOrg, err := s.targetOrganizations(ctx, targetID)
	if err != nil {
		return err
	}

	orphaned := profileOrg == uuid.Nil && metaOrg == uuid.Nil
	belongsToCaller := profileOrg == *caller.OrganizationID || metaOrg == *caller.OrganizationID
	if !orphaned && !belongsToCaller {
		return ErrForbidden
	}

	return s.eraseUser(ctx, targetID)
}

// DeleteOrganization erases every profile of the caller's organization, then
// the organization row itself. Individual user failures are collected, not
// fatal; the organization row is deleted regardless (best effort).
func (s *AccountService) DeleteOrganization(
	ctx context.Context,
	callerID uuid.UUID,
) (*OrgDeletionResult, error) {
	caller, err := s.callerProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != "owner" {
		return nil, ErrForbidden
	}

	orgID := *caller.OrganizationID
	profiles, err := s.profiles.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization profiles: %w", err)
	}

	result := &OrgDeletionResult{AttemptedCount: len(profiles)}
	for _, profile := range profiles {
		if err := s.eraseUser(ctx, profile.ID); err != nil {
			result.Errors = append(result.Errors, UserDeletionError{
				UserID: profile.ID,
				Reason: err.Error(),
			})
		}
	}

	if _, err := s.organizations.Delete(ctx, orgID); err != nil {
		return result, fmt.Errorf("delete organization: %w", err)
	}

	return result, nil
}

func (s *AccountService) callerProfile(
	ctx context.Context,
	callerID uuid.UUID,
) (*models.Profile, error) {
	caller, err := s.profiles.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if caller.OrganizationID == nil {
		return nil, ErrForbidden
	}
	return caller, nil
}

// targetOrganizations reads both organization references a target can carry:
// its profile row and its identity-provider app metadata. Either one matching
// the caller's organization authorizes the deletion; uuid.Nil in both means
// the target is orphaned.
func (s *AccountService) targetOrganizations(
	ctx context.Context,
	targetID uuid.UUID,
) (profileOrg, metaOrg uuid.UUID, err error) {
	profile, err := s.profiles.GetByID(ctx, targetID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, uuid.Nil, err
	}
	if profile != nil && profile.OrganizationID != nil {
		profileOrg = *profile.OrganizationID
	}

	user, err := s.identity.GetUserByID(ctx, targetID.String())
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if user != nil {
		if raw := user.OrganizationID(); raw != "" {
			if parsed, parseErr := uuid.Parse(raw); parseErr == nil {
				metaOrg = parsed
			}
		}
	}

	return profileOrg, metaOrg, nil
}

// eraseUser removes a user's rows in dependency order: push tokens, member
// row, profile row, then the identity account. Identity goes last so a
// data-store failure leaves an account that can still authenticate and retry.
// Absent rows at any step count as success.
func (s *AccountService) eraseUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete push tokens: %w", err)
	}
	if _, err := s.members.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete member row: %w", err)
	}
	if _, err := s.profiles.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete profile row: %w", err)
	}
	if err := s.identity.DeleteUser(ctx, userID.String()); err != nil {
		return fmt.Errorf("delete identity account: %w", err)
	}
	return nil
}

// UpdateUserInput carries the account attributes an admin may change on
// another user. Empty fields are left untouched.
type UpdateUserInput struct {
	Email     string
	FirstName string
	LastName  string
}

// UpdateUser applies admin edits to a target's identity account: email and
// the display-name metadata. Caller must be owner or admin, and the target's
// profile must sit in the caller's organization.
func (s *AccountService) UpdateUser(
	ctx context.Context,
	callerID uuid.UUID,
	targetID uuid.UUID,
	in UpdateUserInput,
) error {
	if in.Email == "" && in.FirstName == "" && in.LastName == "" {
		return ErrInvalidInput
	}

	caller, err := s.callerProfile(ctx, callerID)
	if err != nil {
		return err
	}
	if caller.Role != "owner" && caller.Role != "admin" {
		return ErrForbidden
	}

	target, err := s.profiles.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if target.OrganizationID == nil || *target.OrganizationID != *caller.OrganizationID {
		return ErrForbidden
	}

	meta := map[string]any{}
	if in.FirstName != "" {
		meta["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		meta["last_name"] = in.LastName
	}
	if in.FirstName != "" || in.LastName != "" {
		full := strings.TrimSpace(in.FirstName + " " + in.LastName)
		meta["full_name"] = full
		meta["display_name"] = full
	}

	attrs := map[string]any{"user_metadata": meta}
	if in.Email != "" {
		attrs["email"] = in.Email
	}

	if _, err := s.identity.UpdateUserByID(ctx, targetID.String(), attrs); err != nil {
		return fmt.Errorf("update identity account: %w", err)
	}
	return nil
}

// InviteUser sends a signup invitation scoped to the caller's organization.
// The organization id is taken from the caller's own profile, never from the
// request.
func (s *AccountService) InviteUser(
	ctx context.Context,
	callerID uuid.UUID,
	email string,
	attrs map[string]any,
) (*identity.User, error) {
	if email == "" {
		return nil, ErrInvalidInput
	}

	caller, err := s.callerProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.Role != "owner" && caller.Role != "admin" {
		return nil, ErrForbidden
	}

	data := make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		data[k] = v
	}
	data["organization_id"] = caller.OrganizationID.String()

	return s.identity.InviteByEmail(ctx, email, data)
}
