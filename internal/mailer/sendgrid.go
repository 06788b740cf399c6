package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, from),
	}
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, msg PasswordResetEmail) error {
	html, text, err := renderPasswordReset(msg)
	if err != nil {
		return err
	}
	to := mail.NewEmail(msg.Name, msg.To)
	message := mail.NewSingleEmail(m.from, resetSubject, to, text, html)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid send: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
