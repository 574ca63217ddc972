package models

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/cartloom/payment-relay/internal/errors"
)

const EventChargeSuccess = "charge.success"

// WebhookEvent is the wire shape of a gateway event notification. Amount is
// in minor currency units.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	Amount    int64           `json:"amount"`
	Reference string          `json:"reference"`
	Customer  WebhookCustomer `json:"customer"`
	Metadata  EventMetadata   `json:"metadata"`
}

type WebhookCustomer struct {
	Email string `json:"email"`
}

// EventMetadata is the checkout context the storefront attached when the
// payment was initialized. CartItems and ShippingInfo travel as JSON-encoded
// strings nested inside the already-JSON event body.
type EventMetadata struct {
	OrderID      string `json:"orderId"`
	UserID       string `json:"userId"`
	CartItems    string `json:"cartItems"`
	ShippingInfo string `json:"shippingInfo"`
	Collection   string `json:"collection"`
}

// ParseWebhookEvent decodes an event body. Callers must keep the raw bytes
// around for signature verification; this parsed form is never re-serialized
// for that purpose.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, apperrors.EventError{Reason: "event body", Err: err}
	}
	return &evt, nil
}

// Validate reports the first missing required metadata field
func (m EventMetadata) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"orderId", m.OrderID},
		{"userId", m.UserID},
		{"cartItems", m.CartItems},
		{"shippingInfo", m.ShippingInfo},
		{"collection", m.Collection},
	}
	for _, f := range required {
		if f.value == "" {
			return apperrors.EventError{Reason: fmt.Sprintf("missing metadata field %s", f.name)}
		}
	}
	return nil
}

// DecodeCartItems unwraps the double-encoded cart items payload
func (m EventMetadata) DecodeCartItems() ([]OrderItem, error) {
	var items []OrderItem
	if err := json.Unmarshal([]byte(m.CartItems), &items); err != nil {
		return nil, apperrors.EventError{Reason: "cartItems", Err: err}
	}
	return items, nil
}

// DecodeShippingInfo unwraps the double-encoded shipping info payload
func (m EventMetadata) DecodeShippingInfo() (ShippingInfo, error) {
	var info ShippingInfo
	if err := json.Unmarshal([]byte(m.ShippingInfo), &info); err != nil {
		return ShippingInfo{}, apperrors.EventError{Reason: "shippingInfo", Err: err}
	}
	return info, nil
}
