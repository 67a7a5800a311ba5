package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the staff/user identity record. Its ID equals the
// identity-provider account id, one-to-one.
type Profile struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID *uuid.UUID `json:"organization_id"`
	Role           string     `json:"role"`
	FirstName      *string    `json:"first_name"`
	LastName       *string    `json:"last_name"`
	AvatarURL      *string    `json:"avatar_url"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (p *Profile) FullName() string {
	name := ""
	if p.FirstName != nil {
		name = *p.FirstName
	}
	if p.LastName != nil {
		if name != "" {
			name += " "
		}
		name += *p.LastName
	}
	return name
}

type Organization struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	SubscriptionTier string     `json:"subscription_tier"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
	CreatedAt        time.Time  `json:"created_at"`
}
