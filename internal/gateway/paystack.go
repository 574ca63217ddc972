package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cartloom/payment-relay/config"
	apperrors "github.com/cartloom/payment-relay/internal/errors"
	"github.com/cartloom/payment-relay/internal/models"
)

// PaystackClient talks to a Paystack-compatible gateway over its REST API.
// The same secret key authenticates outbound calls (bearer token) and inbound
// webhooks (HMAC-SHA512 over the raw delivery body, hex encoded).
type PaystackClient struct {
	cfg    config.GatewayConfig
	client *http.Client
}

func NewPaystack(cfg config.GatewayConfig) *PaystackClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &PaystackClient{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (p *PaystackClient) Name() string { return "paystack" }

// ValidateSignature checks the webhook digest against the raw request bytes.
// The caller must pass the exact bytes read off the wire: re-serializing the
// parsed JSON can reorder keys or reformat numbers and break the digest.
func (p *PaystackClient) ValidateSignature(rawBody []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return apperrors.ErrBadSignature
	}
	expected := p.Sign(rawBody)
	// hex digests are case-insensitive; normalize before the constant-time compare
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signatureHeader))) {
		return apperrors.ErrBadSignature
	}
	return nil
}

// Sign computes the hex HMAC-SHA512 digest of body under the secret key
func (p *PaystackClient) Sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(p.cfg.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type initializePayload struct {
	Amount   int64                `json:"amount"`
	Email    string               `json:"email"`
	Metadata models.EventMetadata `json:"metadata"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a transaction and returns the authorization redirect
// target plus the gateway reference.
func (p *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload := initializePayload{
		Amount:   req.AmountMinor,
		Email:    req.Email,
		Metadata: req.Metadata,
	}

	var out InitializeResponse
	if err := p.post(ctx, "/transaction/initialize", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify looks up a transaction by its reference
func (p *PaystackClient) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	var out VerifyResponse
	if err := p.get(ctx, "/transaction/verify/"+reference, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PaystackClient) post(ctx context.Context, path string, payload any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *PaystackClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return p.do(req, out)
}

func (p *PaystackClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return apperrors.GatewayError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode gateway data: %w", err)
	}
	return nil
}
