package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var errMissingIdentity = errors.New("missing caller identity")

func callerID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals("user_id").(string)
	if !ok || raw == "" {
		return uuid.Nil, errMissingIdentity
	}
	return uuid.Parse(raw)
}

func callerRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}

func callerOrganizationID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, ok := c.Locals("organization_id").(string)
	if !ok || raw == "" {
		return uuid.Nil, errMissingIdentity
	}
	return uuid.Parse(raw)
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}
