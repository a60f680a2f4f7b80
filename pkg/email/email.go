// Package email sends transactional mail through Resend.
//
// Services depend on the Sender interface; main wires either the Resend
// implementation or a no-op when no API key is configured.
package email

import (
	"context"
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// Notification is one notification rendered for e-mail.
type Notification struct {
	Subject string
	Title   string
	Message string
	// Link is an absolute URL to the notification target.
	Link string
	// OpenLabel is the localized text of the call-to-action button.
	OpenLabel string
}

// Sender sends e-mail on behalf of the application.
type Sender interface {
	// SendNotification mails a notification to a user who had no live
	// connection and no working push device.
	SendNotification(ctx context.Context, toEmail string, n Notification) error
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
}

// NewResendSender creates a Sender backed by the Resend API. fromEmail must
// belong to a domain verified in Resend.
func NewResendSender(apiKey, fromEmail string) Sender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
	}
}

func (s *resendSender) SendNotification(ctx context.Context, toEmail string, n Notification) error {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background-color:#0f172a;font-family:Arial,Helvetica,sans-serif;">
  <h1 style="color:#e2e8f0;font-size:20px;margin:0 0 12px 0;">%s</h1>
  <p style="color:#94a3b8;font-size:15px;line-height:1.6;margin:0 0 24px 0;">%s</p>
  <a href="%s" style="background-color:#6366f1;border-radius:6px;padding:10px 28px;color:#ffffff;text-decoration:none;font-weight:600;">%s</a>
</body>
</html>`,
		html.EscapeString(n.Title),
		html.EscapeString(n.Message),
		html.EscapeString(n.Link),
		html.EscapeString(n.OpenLabel),
	)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Glim <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: n.Subject,
		Html:    body,
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	return nil
}

type noopSender struct{}

// NewNoopSender returns a Sender that sends nothing.
func NewNoopSender() Sender { return noopSender{} }

func (noopSender) SendNotification(context.Context, string, Notification) error { return nil }
