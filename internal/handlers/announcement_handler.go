package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/services"
)

type announcementApplicationService interface {
	Broadcast(ctx context.Context, senderID uuid.UUID, title, content string) (*services.BroadcastResult, error)
	List(ctx context.Context, callerID uuid.UUID, limit int) ([]models.Announcement, error)
}

type AnnouncementHandler struct {
	service announcementApplicationService
}

func NewAnnouncementHandler(service *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

type broadcastRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *AnnouncementHandler) Broadcast(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	senderID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := h.service.Broadcast(c.Context(), senderID, req.Title, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and content are required"})
		case errors.Is(err, services.ErrForbidden):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		default:
			// The announcement may be stored even when push delivery fails.
			if result != nil {
				return c.Status(fiber.StatusOK).JSON(fiber.Map{
					"result":  result,
					"warning": "Announcement stored but push delivery failed",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to broadcast announcement"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"result": result})
}

func (h *AnnouncementHandler) ListAnnouncements(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	limit := c.QueryInt("limit", 50)

	announcements, err := h.service.List(c.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list announcements"})
	}

	return c.JSON(fiber.Map{"announcements": announcements})
}
