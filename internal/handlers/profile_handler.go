package handlers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/repository"
	"github.com/rks020/ptbodychange/internal/services"
)

const maxAvatarSize = 5 << 20 // 5 MiB

type ProfileHandler struct {
	profiles *repository.ProfileRepository
	tokens   *repository.FcmTokenRepository
	storage  services.StorageService
}

func NewProfileHandler(
	profiles *repository.ProfileRepository,
	tokens *repository.FcmTokenRepository,
	storage services.StorageService,
) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, tokens: tokens, storage: storage}
}

type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type registerTokenRequest struct {
	Token string `json:"token"`
}

func (h *ProfileHandler) GetMe(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	profile, err := h.profiles.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	return c.JSON(fiber.Map{"profile": profile})
}

func (h *ProfileHandler) UpdateMe(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	profile, err := h.profiles.UpdateNames(c.Context(), userID, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update profile"})
	}

	return c.JSON(fiber.Map{"profile": profile})
}

// UploadAvatar replaces the caller's avatar. The previous object is removed
// best effort; a stale orphan in the bucket is preferable to a failed upload.
func (h *ProfileHandler) UploadAvatar(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if fileHeader.Size > maxAvatarSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "avatar must be 5MB or smaller"})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar must be jpg, png or webp"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Could not read avatar file"})
	}
	defer file.Close()

	profile, err := h.profiles.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch profile"})
	}

	filename := fmt.Sprintf("%s%s", userID, ext)
	avatarURL, err := h.storage.UploadAvatar(c.Context(), file, filename)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to upload avatar"})
	}

	if profile.AvatarURL != nil && *profile.AvatarURL != avatarURL {
		_ = h.storage.DeleteAvatar(c.Context(), *profile.AvatarURL)
	}

	if err := h.profiles.UpdateAvatarURL(c.Context(), userID, avatarURL); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save avatar"})
	}

	return c.JSON(fiber.Map{"avatar_url": avatarURL})
}

func (h *ProfileHandler) ListTrainers(c *fiber.Ctx) error {
	organizationID, err := callerOrganizationID(c)
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Caller has no organization"})
	}

	trainers, err := h.profiles.ListByOrganizationAndRole(c.Context(), organizationID, "trainer")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to list trainers"})
	}

	return c.JSON(fiber.Map{"trainers": trainers})
}

func (h *ProfileHandler) RegisterFcmToken(c *fiber.Ctx) error {
	userID, err := callerID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req registerTokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	if err := h.tokens.Upsert(c.Context(), userID, token); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to register token"})
	}

	return c.JSON(fiber.Map{"message": "Token registered"})
}
