package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cartloom/payment-relay/config"
	"github.com/cartloom/payment-relay/internal/logger"
)

// Sender delivers a single HTML email. Delivery is best-effort everywhere in
// this service: callers log failures and move on, they never roll anything
// back because of one.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// HTTPSender posts messages to a SendGrid-compatible mail API
type HTTPSender struct {
	cfg    config.MailConfig
	client *http.Client
}

func NewHTTPSender(cfg config.MailConfig) *HTTPSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailPayload struct {
	Personalizations []struct {
		To []mailAddress `json:"to"`
	} `json:"personalizations"`
	From    mailAddress `json:"from"`
	Subject string      `json:"subject"`
	Content []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"content"`
}

func (s *HTTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	var payload mailPayload
	payload.Personalizations = make([]struct {
		To []mailAddress `json:"to"`
	}, 1)
	payload.Personalizations[0].To = []mailAddress{{Email: to}}
	payload.From = mailAddress{Email: s.cfg.FromAddress, Name: s.cfg.FromName}
	payload.Subject = subject
	payload.Content = []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	}{{Type: "text/html", Value: htmlBody}}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// NoopSender is used when mail is disabled
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	logger.Debug("Mail disabled; dropping message", "to", to, "subject", subject)
	return nil
}

// New returns the configured sender, or a no-op when mail is disabled
func New(cfg config.MailConfig) Sender {
	if !cfg.Enabled {
		return NoopSender{}
	}
	return NewHTTPSender(cfg)
}
