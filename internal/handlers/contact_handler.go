package handlers

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rks020/ptbodychange/internal/services"
)

type contactEmailSender interface {
	SendContactMessage(ctx context.Context, fullName, email, message string) (string, error)
}

type ContactHandler struct {
	emails contactEmailSender
}

func NewContactHandler(emails *services.EmailService) *ContactHandler {
	return &ContactHandler{emails: emails}
}

type contactRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// SendMessage is the public contact form endpoint. It sits behind the rate
// limiter, not behind auth.
func (h *ContactHandler) SendMessage(c *fiber.Ctx) error {
	var req contactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid email is required"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}

	messageID, err := h.emails.SendContactMessage(c.Context(), strings.TrimSpace(req.FullName), email, req.Message)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and message are required"})
		}
		log.Printf("contact email failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to send message"})
	}

	return c.JSON(fiber.Map{"message": "Message sent", "id": messageID})
}
