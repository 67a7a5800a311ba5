package models

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID                  uuid.UUID  `json:"id"`
	OrganizationID      uuid.UUID  `json:"organization_id"`
	TrainerID           *uuid.UUID `json:"trainer_id"`
	Name                string     `json:"name"`
	Email               *string    `json:"email"`
	Phone               *string    `json:"phone"`
	SessionCount        int        `json:"session_count"`
	UsedSessionCount    int        `json:"used_session_count"`
	IsActive            bool       `json:"is_active"`
	IsMultisport        bool       `json:"is_multisport"`
	SubscriptionPackage *string    `json:"subscription_package"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// RemainingSessions is the package balance still available to schedule.
func (m *Member) RemainingSessions() int {
	remaining := m.SessionCount - m.UsedSessionCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
