package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/repository"
)

type memberStore interface {
	Create(ctx context.Context, input repository.CreateMemberInput) (*models.Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, activeOnly bool) ([]models.Member, error)
	Update(ctx context.Context, id uuid.UUID, input repository.UpdateMemberInput) (*models.Member, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type MemberHandler struct {
	members memberStore
}

func NewMemberHandler(members *repository.MemberRepository) *MemberHandler {
	return &MemberHandler{members: members}
}

// loadOrgMember fetches a member and hides rows of other organizations, the
// way row-level security would.
func (h *MemberHandler) loadOrgMember(c *fiber.Ctx, organizationID, memberID uuid.UUID) (*models.Member, error) {
	member, err := h.members.GetByID(c.Context(), memberID)
	if err != nil {
		return nil, err
	}
	if member.OrganizationID != organizationID {
		return nil, pgx.ErrNoRows
	}
	return member, nil
}

type createMemberRequest struct {
	ID                  string  `json:"id"`
	TrainerID           string  `json:"trainer_id"`
	Name                string  `json:"name"`
	Email               *string `json:"email"`
	Phone               *string `json:"phone"`
	SessionCount        int     `json:"session_count"`
	IsMultisport        bool    `json:"is_multisport"`
	SubscriptionPackage *string `json:"subscription_package"`
}

type updateMemberRequest struct {
	TrainerID           string  `json:"trainer_id"`
	Name                string  `json:"name"`
	Email               *string `json:"email"`
	Phone               *string `json:"phone"`
	SessionCount        int     `json:"session_count"`
	IsActive            bool    `json:"is_active"`
	IsMultisport        bool    `json:"is_multisport"`
	SubscriptionPackage *string `json:"subscription_package"`
}

func (h *MemberHandler) CreateMember(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	var req createMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.SessionCount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_count must not be negative"})
	}

	input := repository.CreateMemberInput{
		ID:                  uuid.New(),
		OrganizationID:      organizationID,
		Name:                name,
		Email:               req.Email,
		Phone:               req.Phone,
		SessionCount:        req.SessionCount,
		IsMultisport:        req.IsMultisport,
		SubscriptionPackage: req.SubscriptionPackage,
	}
	// An explicit id links the member row to an existing account profile.
	if raw := strings.TrimSpace(req.ID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a valid UUID"})
		}
		input.ID = id
	}
	if raw := strings.TrimSpace(req.TrainerID); raw != "" {
		trainerID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id must be a valid UUID"})
		}
		input.TrainerID = &trainerID
	}

	member, err := h.members.Create(c.Context(), input)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create member"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"member": member})
}

func (h *MemberHandler) ListMembers(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	activeOnly := c.QueryBool("active_only", false)

	members, err := h.members.ListByOrganization(c.Context(), organizationID, activeOnly)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list members"})
	}

	return c.JSON(fiber.Map{"members": members})
}

func (h *MemberHandler) GetMember(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	memberID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member id"})
	}

	member, err := h.loadOrgMember(c, organizationID, memberID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch member"})
	}

	return c.JSON(fiber.Map{"member": member})
}

func (h *MemberHandler) UpdateMember(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	memberID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member id"})
	}

	if _, err := h.loadOrgMember(c, organizationID, memberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch member"})
	}

	var req updateMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	if req.SessionCount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "session_count must not be negative"})
	}

	input := repository.UpdateMemberInput{
		Name:                name,
		Email:               req.Email,
		Phone:               req.Phone,
		SessionCount:        req.SessionCount,
		IsActive:            req.IsActive,
		IsMultisport:        req.IsMultisport,
		SubscriptionPackage: req.SubscriptionPackage,
	}
	if raw := strings.TrimSpace(req.TrainerID); raw != "" {
		trainerID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id must be a valid UUID"})
		}
		input.TrainerID = &trainerID
	}

	member, err := h.members.Update(c.Context(), memberID, input)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update member"})
	}

	return c.JSON(fiber.Map{"member": member})
}

func (h *MemberHandler) DeleteMember(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	memberID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member id"})
	}

	if _, err := h.loadOrgMember(c, organizationID, memberID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch member"})
	}

	deleted, err := h.members.Delete(c.Context(), memberID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete member"})
	}
	if deleted == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	}

	return c.JSON(fiber.Map{"message": "Member deleted"})
}
