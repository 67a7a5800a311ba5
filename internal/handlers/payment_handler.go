package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/repository"
)

var (
	paymentTypes      = map[string]bool{"cash": true, "credit_card": true, "transfer": true}
	paymentCategories = map[string]bool{"package_renewal": true, "single_session": true, "extra": true, "other": true}
)

type PaymentHandler struct {
	payments *repository.PaymentRepository
}

func NewPaymentHandler(payments *repository.PaymentRepository) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentRequest struct {
	MemberID    string  `json:"member_id"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
}

type updatePaymentRequest struct {
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Description *string `json:"description"`
}

// normalizePaymentKind validates type and category, defaulting blanks to
// cash/other.
func normalizePaymentKind(rawType, rawCategory string) (string, string, error) {
	paymentType := strings.TrimSpace(rawType)
	if paymentType == "" {
		paymentType = "cash"
	}
	if !paymentTypes[paymentType] {
		return "", "", errors.New("type must be cash, credit_card or transfer")
	}

	category := strings.TrimSpace(rawCategory)
	if category == "" {
		category = "other"
	}
	if !paymentCategories[category] {
		return "", "", errors.New("category must be package_renewal, single_session, extra or other")
	}

	return paymentType, category, nil
}

func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	var req createPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	memberID, err := uuid.Parse(strings.TrimSpace(req.MemberID))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "member_id must be a valid UUID"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	paymentType, category, err := normalizePaymentKind(req.Type, req.Category)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	date := time.Now()
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
		}
	}

	payment, err := h.payments.Create(c.Context(), organizationID, repository.CreatePaymentInput{
		MemberID:    memberID,
		Amount:      req.Amount,
		Type:        paymentType,
		Category:    category,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to record payment"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) ListPayments(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}

	total, err := h.payments.CountByOrganization(c.Context(), organizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list payments"})
	}

	payments, err := h.payments.ListByOrganization(c.Context(), organizationID, limit, (page-1)*limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list payments"})
	}

	return c.JSON(fiber.Map{
		"payments":   payments,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *PaymentHandler) UpdatePayment(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	paymentID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	var req updatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "amount must be positive"})
	}

	paymentType, category, err := normalizePaymentKind(req.Type, req.Category)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	payment, err := h.payments.Update(c.Context(), organizationID, paymentID, repository.UpdatePaymentInput{
		Amount:      req.Amount,
		Type:        paymentType,
		Category:    category,
		Description: req.Description,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update payment"})
	}

	return c.JSON(fiber.Map{"payment": payment})
}

func (h *PaymentHandler) DeletePayment(c *fiber.Ctx) error {
	if role := callerRole(c); role != "owner" && role != "admin" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	paymentID, err := parseUUIDParam(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid payment id"})
	}

	deleted, err := h.payments.Delete(c.Context(), organizationID, paymentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete payment"})
	}
	if deleted == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Payment not found"})
	}

	return c.JSON(fiber.Map{"message": "Payment deleted"})
}
