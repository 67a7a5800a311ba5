package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v2"
)

// EmailService forwards contact-form messages to the gym's inbox through
// Resend. Fire-and-forget; no retries.
type EmailService struct {
	client *resend.Client
	from   string
	to     string
}

func NewEmailService(apiKey, from, to string) *EmailService {
	return &EmailService{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (s *EmailService) SendContactMessage(
	ctx context.Context,
	fullName string,
	email string,
	message string,
) (string, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(message) == "" {
		return "", ErrInvalidInput
	}
	if fullName == "" {
		fullName = "Anonymous"
	}

	body := fmt.Sprintf(`
		<h3>New contact form message</h3>
		<p><strong>From:</strong> %s (%s)</p>
		<p><strong>Message:</strong></p>
		<div style="background:#f4f4f4; padding:15px; border-radius:5px;">%s</div>
	`,
		html.EscapeString(fullName),
		html.EscapeString(email),
		strings.ReplaceAll(html.EscapeString(message), "\n", "<br>"),
	)

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{s.to},
		ReplyTo: email,
		Subject: "New contact message: " + fullName,
		Html:    body,
	})
	if err != nil {
		return "", fmt.Errorf("send contact email: %w", err)
	}
	return sent.Id, nil
}
