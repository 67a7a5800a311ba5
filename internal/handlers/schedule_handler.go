package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rks020/ptbodychange/internal/services"
)

type schedulerApplicationService interface {
	CreateSchedule(ctx context.Context, memberID uuid.UUID, in services.ScheduleInput, force bool) (*services.ScheduleResult, error)
}

type ScheduleHandler struct {
	service schedulerApplicationService
}

func NewScheduleHandler(service *services.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

type createScheduleRequest struct {
	TrainerID       string            `json:"trainer_id"`
	StartDate       string            `json:"start_date"`
	EndDate         string            `json:"end_date"`
	Days            map[string]string `json:"days"`
	DurationMinutes int               `json:"duration_minutes"`
	Title           string            `json:"title"`
	Notes           *string           `json:"notes"`
	Force           bool              `json:"force"`
}

// CreateSchedule expands a weekly recurrence for a member and creates the
// sessions, pausing with 409 and the conflict list when existing sessions
// overlap and force is not set.
func (h *ScheduleHandler) CreateSchedule(c *fiber.Ctx) error {
	role := callerRole(c)
	if role != "owner" && role != "admin" && role != "trainer" {
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

	var req createScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	trainerID, err := uuid.Parse(req.TrainerID)
	if err != nil {
		// Trainers schedule for themselves when no trainer is named.
		if role != "trainer" || strings.TrimSpace(req.TrainerID) != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
		}
		trainerID, err = callerID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "start_date must be YYYY-MM-DD"})
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "end_date must be YYYY-MM-DD"})
	}

	rule, err := parseRecurrenceRule(req.Days)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := h.service.CreateSchedule(c.Context(), memberID, services.ScheduleInput{
		OrganizationID:  organizationID,
		TrainerID:       trainerID,
		StartDate:       startDate,
		EndDate:         endDate,
		Rule:            rule,
		DurationMinutes: req.DurationMinutes,
		Title:           strings.TrimSpace(req.Title),
		Notes:           req.Notes,
	}, req.Force)
	if err != nil {
		return mapScheduleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// parseRecurrenceRule accepts weekday keys as numbers, 0=Sunday through
// 6=Saturday, matching what the calendar UI sends, with "HH:MM" values.
func parseRecurrenceRule(days map[string]string) (map[time.Weekday]services.TimeOfDay, error) {
	if len(days) == 0 {
		return nil, errors.New("days must contain at least one weekday")
	}

	rule := make(map[time.Weekday]services.TimeOfDay, len(days))
	for rawDay, rawTime := range days {
		dayNum, err := strconv.Atoi(rawDay)
		if err != nil || dayNum < 0 || dayNum > 6 {
			return nil, errors.New("days keys must be weekday numbers 0 (Sunday) to 6 (Saturday)")
		}
		tod, err := parseTimeOfDay(rawTime)
		if err != nil {
			return nil, err
		}
		rule[time.Weekday(dayNum)] = tod
	}
	return rule, nil
}

func parseTimeOfDay(raw string) (services.TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return services.TimeOfDay{}, errors.New("times must be HH:MM")
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return services.TimeOfDay{}, errors.New("times must be HH:MM")
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return services.TimeOfDay{}, errors.New("times must be HH:MM")
	}
	tod := services.TimeOfDay{Hour: hour, Minute: minute}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return services.TimeOfDay{}, errors.New("times must be within 00:00-23:59")
	}
	return tod, nil
}

func mapScheduleError(c *fiber.Ctx, err error) error {
	var conflictErr *services.ConflictError
	var partialErr *services.PartialCreationError

	switch {
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "Requested schedule conflicts with existing sessions",
			"conflicts": conflictErr.Conflicts,
		})
	case errors.As(err, &partialErr):
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":         "Schedule creation failed partway through",
			"created_count": partialErr.CreatedCount,
		})
	case errors.Is(err, services.ErrNoMatchingDays),
		errors.Is(err, services.ErrNoCreditsLeft),
		errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Member not found"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create schedule"})
	}
}
