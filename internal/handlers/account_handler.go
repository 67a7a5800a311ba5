package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/identity"
	"github.com/rks020/ptbodychange/internal/services"
)

type accountApplicationService interface {
	DeleteUser(ctx context.Context, callerID, targetID uuid.UUID) error
	DeleteOrganization(ctx context.Context, callerID uuid.UUID) (*services.OrgDeletionResult, error)
	InviteUser(ctx context.Context, callerID uuid.UUID, email string, attrs map[string]any) (*identity.User, error)
	UpdateUser(ctx context.Context, callerID, targetID uuid.UUID, in services.UpdateUserInput) error
}

type AccountHandler struct {
	service accountApplicationService
}

func NewAccountHandler(service *services.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

type deleteAccountRequest struct {
	UserID    string `json:"user_id"`
	DeleteOrg bool   `json:"delete_organization"`
}

type inviteUserRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// DeleteAccount erases a single user, or with delete_org the caller's whole
// organization. Organization erasure is best-effort per user and reports
// partial failures in the response body.
func (h *AccountHandler) DeleteAccount(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req deleteAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.DeleteOrg {
		result, err := h.service.DeleteOrganization(c.Context(), caller)
		if err != nil {
			return mapAccountError(c, err)
		}
		if len(result.Errors) > 0 {
			return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
				"message": "Organization deleted with partial failures",
				"result":  result,
			})
		}
		return c.JSON(fiber.Map{
			"message": "Organization deleted",
			"result":  result,
		})
	}

	targetID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id must be a valid UUID"})
	}

	if err := h.service.DeleteUser(c.Context(), caller, targetID); err != nil {
		return mapAccountError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User deleted"})
}

func (h *AccountHandler) InviteUser(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req inviteUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}

	attrs := map[string]any{}
	if role := strings.TrimSpace(req.Role); role != "" {
		attrs["role"] = role
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		attrs["name"] = name
	}

	user, err := h.service.InviteUser(c.Context(), caller, email, attrs)
	if err != nil {
		return mapAccountError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

type updateUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// UpdateUser lets an owner or admin change another user's email and name
// fields. The target must belong to the caller's organization.
func (h *AccountHandler) UpdateUser(c *fiber.Ctx) error {
	caller, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	targetID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid user id"})
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	in := services.UpdateUserInput{
		Email:     strings.TrimSpace(req.Email),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if err := h.service.UpdateUser(c.Context(), caller, targetID, in); err != nil {
		return mapAccountError(c, err)
	}

	return c.JSON(fiber.Map{"message": "User updated"})
}

func mapAccountError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process account request"})
	}
}
