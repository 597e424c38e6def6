package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SMSSender delivers one text message and returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	// BaseURL defaults to https://api.twilio.com.
	BaseURL string
}

// TwilioSender posts messages to Twilio's REST API. One attempt per message.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTwilioSender returns nil unless both the account SID and auth token
// are set.
func NewTwilioSender(cfg TwilioConfig, logger zerolog.Logger) *TwilioSender {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil
	}
	if cfg.From == "" {
		cfg.From = "+18005551234"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if s == nil {
		return "", errors.New("notify: twilio credentials missing")
	}
	if to == "" {
		return "", errors.New("notify: sms recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("notify: sms body required")
	}

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return "", fmt.Errorf("notify: build twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error().Err(err).Str("to", to).Msg("twilio request failed")
		return "", fmt.Errorf("notify: twilio request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("notify: twilio send failed: %s", formatTwilioError(resp.StatusCode, raw))
		s.logger.Error().Err(err).Str("to", to).Msg("twilio rejected sms")
		return "", err
	}

	var parsed struct {
		SID    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("notify: decode twilio response: %w", err)
	}

	s.logger.Info().Str("to", to).Str("sid", parsed.SID).Str("status", parsed.Status).Msg("twilio sms sent")
	return parsed.SID, nil
}

func formatTwilioError(status int, body []byte) string {
	var parsed struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
	}
	return fmt.Sprintf("status %d", status)
}
