package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	// Text is the plain-text alternative; HTML is reused when empty.
	Text string
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides https://api.sendgrid.com, for tests.
	Host string
}

type SendGridSender struct {
	// request is copied per send; sendgrid.Client keeps the body on itself.
	request   rest.Request
	fromEmail string
	fromName  string
	logger    zerolog.Logger
}

// NewSendGridSender returns nil when no API key is configured, which the
// dispatcher treats as an unconfigured channel.
func NewSendGridSender(cfg SendGridConfig, logger zerolog.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = "appointments@praxis-medical.com"
	}
	if cfg.FromName == "" {
		cfg.FromName = "Praxis Medical"
	}

	req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
	req.Method = "POST"

	return &SendGridSender{
		request:   req,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.request.BaseURL == "" {
		return errors.New("notify: sendgrid client not configured")
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)

	text := msg.Text
	if text == "" {
		text = msg.HTML
	}
	message := mail.NewSingleEmail(from, msg.Subject, to, text, msg.HTML)

	client := &sendgrid.Client{Request: s.request}
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.Error().Err(err).Str("to", msg.To).Msg("sendgrid send failed")
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}

	if response.StatusCode >= 400 {
		s.logger.Error().
			Int("status", response.StatusCode).
			Str("body", response.Body).
			Str("to", msg.To).
			Msg("sendgrid returned error status")
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("status", response.StatusCode).
		Msg("email sent via sendgrid")
	return nil
}
