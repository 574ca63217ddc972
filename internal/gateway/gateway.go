package gateway

import (
	"context"

	"github.com/cartloom/payment-relay/internal/models"
)

// Client is the payment gateway capability surface the relay depends on:
// initialize a transaction, verify one by reference, and authenticate an
// inbound webhook delivery.
type Client interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
	ValidateSignature(rawBody []byte, signatureHeader string) error
}

// InitializeRequest starts a checkout. Amount is in minor currency units.
// Metadata is echoed back verbatim in the webhook delivery, which is how the
// fulfillment flow recovers the checkout context.
type InitializeRequest struct {
	AmountMinor int64
	Email       string
	Metadata    models.EventMetadata
}

// InitializeResponse carries the redirect target for the buyer's browser and
// the gateway's transaction reference.
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResponse is the gateway's view of a transaction looked up by reference
type VerifyResponse struct {
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount"`
	Reference   string `json:"reference"`
}

// TransactionSuccess is the verify status that counts as a paid transaction
const TransactionSuccess = "success"
