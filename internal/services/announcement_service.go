package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rks020/ptbodychange/internal/models"
	"github.com/rks020/ptbodychange/internal/push"
)

type announcementStore interface {
	Create(ctx context.Context, organizationID, senderID uuid.UUID, title, content string) (*models.Announcement, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID, limit int) ([]models.Announcement, error)
}

type profileLister interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListByOrganization(ctx context.Context, organizationID uuid.UUID) ([]models.Profile, error)
}

type tokenLister interface {
	ListByUserIDs(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
}

type pushSender interface {
	Send(ctx context.Context, tokens []string, msg push.Message) (int, error)
}

type BroadcastResult struct {
	Announcement *models.Announcement `json:"announcement"`
	Recipients   int                  `json:"recipients"`
	Delivered    int                  `json:"delivered"`
}

// AnnouncementService stores announcements and pushes them to every member of
// the organization except the sender. Delivery is best effort.
type AnnouncementService struct {
	announcements announcementStore
	profiles      profileLister
	tokens        tokenLister
	push          pushSender
}

func NewAnnouncementService(
	announcements announcementStore,
	profiles profileLister,
	tokens tokenLister,
	pushClient pushSender,
) *AnnouncementService {
	return &AnnouncementService{
		announcements: announcements,
		profiles:      profiles,
		tokens:        tokens,
		push:          pushClient,
	}
}

func (s *AnnouncementService) Broadcast(
	ctx context.Context,
	senderID uuid.UUID,
	title string,
	content string,
) (*BroadcastResult, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, ErrInvalidInput
	}

	sender, err := s.profiles.GetByID(ctx, senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if sender.OrganizationID == nil {
		return nil, ErrForbidden
	}
	orgID := *sender.OrganizationID

	announcement, err := s.announcements.Create(ctx, orgID, senderID, title, content)
	if err != nil {
		return nil, fmt.Errorf("store announcement: %w", err)
	}

	profiles, err := s.profiles.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	recipientIDs := make([]uuid.UUID, 0, len(profiles))
	for _, profile := range profiles {
		if profile.ID == senderID {
			continue
		}
		recipientIDs = append(recipientIDs, profile.ID)
	}

	result := &BroadcastResult{Announcement: announcement, Recipients: len(recipientIDs)}
	if len(recipientIDs) == 0 {
		return result, nil
	}

	tokens, err := s.tokens.ListByUserIDs(ctx, recipientIDs)
	if err != nil {
		return nil, fmt.Errorf("list push tokens: %w", err)
	}
	tokens = dedupeTokens(tokens)
	if len(tokens) == 0 {
		return result, nil
	}

	delivered, err := s.push.Send(ctx, tokens, push.Message{
		Title: "New announcement: " + title,
		Body:  content,
		Data: map[string]string{
			"type":      "announcement",
			"sender_id": senderID.String(),
		},
	})
	if err != nil {
		// The announcement is already stored; report the push failure but
		// do not undo the write.
		return result, fmt.Errorf("send push notifications: %w", err)
	}

	result.Delivered = delivered
	return result, nil
}

func (s *AnnouncementService) List(
	ctx context.Context,
	callerID uuid.UUID,
	limit int,
) ([]models.Announcement, error) {
	caller, err := s.profiles.GetByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}
	if caller.OrganizationID == nil {
		return nil, ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	return s.announcements.ListByOrganization(ctx, *caller.OrganizationID, limit)
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		unique = append(unique, token)
	}
	return unique
}
