package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/repository"
	"github.com/rks020/ptbodychange/internal/services"
)

type sessionApplicationService interface {
	ListSessions(ctx context.Context, filter repository.SessionListFilter) ([]models.SessionDetail, error)
	GetSession(ctx context.Context, organizationID, sessionID uuid.UUID) (*models.SessionDetail, error)
	UpdateSessionTime(ctx context.Context, organizationID, sessionID uuid.UUID, newStart, newEnd time.Time) (*models.ClassSession, error)
	CompleteSession(ctx context.Context, organizationID, sessionID uuid.UUID) (*models.ClassSession, error)
	CancelSession(ctx context.Context, organizationID, sessionID uuid.UUID) (*models.ClassSession, error)
	DeleteSession(ctx context.Context, organizationID, sessionID uuid.UUID, mode string) (int64, error)
}

type SessionHandler struct {
	service sessionApplicationService
}

func NewSessionHandler(service *services.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

type updateSessionTimeRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (h *SessionHandler) ListSessions(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	filter := repository.SessionListFilter{
		OrganizationID: &organizationID,
		Status:         strings.TrimSpace(c.Query("status")),
	}

	if raw := strings.TrimSpace(c.Query("trainer_id")); raw != "" {
		trainerID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
		}
		filter.TrainerID = &trainerID
	}
	if raw := strings.TrimSpace(c.Query("member_id")); raw != "" {
		memberID, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member id"})
		}
		filter.MemberID = &memberID
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "from must be RFC3339"})
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "to must be RFC3339"})
		}
		filter.To = &to
	}

	sessions, err := h.service.ListSessions(c.Context(), filter)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

// MemberHistory lists every session a member was ever booked into.
func (h *SessionHandler) MemberHistory(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	memberID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid member id"})
	}

	filter := repository.SessionListFilter{
		OrganizationID: &organizationID,
		MemberID:       &memberID,
		Status:         strings.TrimSpace(c.Query("status")),
	}

	sessions, err := h.service.ListSessions(c.Context(), filter)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.GetSession(c.Context(), organizationID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) UpdateSessionTime(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	var req updateSessionTimeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_time must be a valid RFC3339 timestamp"})
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndTime))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_time must be a valid RFC3339 timestamp"})
	}

	session, err := h.service.UpdateSessionTime(c.Context(), organizationID, sessionID, start, end)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CompleteSession(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.CompleteSession(c.Context(), organizationID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) CancelSession(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	session, err := h.service.CancelSession(c.Context(), organizationID, sessionID)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"session": session})
}

func (h *SessionHandler) DeleteSession(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	sessionID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid session id"})
	}

	mode := strings.TrimSpace(c.Query("mode", services.DeleteModeSingle))
	if mode != services.DeleteModeSingle && mode != services.DeleteModeProgram {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "mode must be single or program"})
	}

	deleted, err := h.service.DeleteSession(c.Context(), organizationID, sessionID, mode)
	if err != nil {
		return mapSessionError(c, err)
	}

	return c.JSON(fiber.Map{"deleted_count": deleted})
}

func mapSessionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "Session is already completed or cancelled"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
