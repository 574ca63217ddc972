package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	apperrors "github.com/cartloom/payment-relay/internal/errors"
	"github.com/cartloom/payment-relay/internal/gateway"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/models"
)

// maxWebhookBody caps inbound webhook payloads
const maxWebhookBody = 1 << 20

// InitializePaymentRequest is the storefront's checkout request. All six
// fields are required.
type InitializePaymentRequest struct {
	Amount       float64              `json:"amount"`
	Email        string               `json:"email"`
	OrderID      string               `json:"orderId"`
	UserID       string               `json:"userId"`
	CartItems    []models.OrderItem   `json:"cartItems"`
	ShippingInfo *models.ShippingInfo `json:"shippingInfo"`
}

func (req *InitializePaymentRequest) validate() error {
	switch {
	case req.Amount <= 0:
		return apperrors.ValidationError{Field: "amount", Message: "must be greater than zero"}
	case req.Email == "":
		return apperrors.ValidationError{Field: "email", Message: "is required"}
	case req.OrderID == "":
		return apperrors.ValidationError{Field: "orderId", Message: "is required"}
	case req.UserID == "":
		return apperrors.ValidationError{Field: "userId", Message: "is required"}
	case len(req.CartItems) == 0:
		return apperrors.ValidationError{Field: "cartItems", Message: "must not be empty"}
	case req.ShippingInfo == nil:
		return apperrors.ValidationError{Field: "shippingInfo", Message: "is required"}
	}
	return nil
}

// initializePayment starts a checkout with the gateway. Cart items and
// shipping info are serialized into metadata strings so the webhook gets the
// same double-encoded shape back.
func (h *Handler) initializePayment(w http.ResponseWriter, r *http.Request) {
	var req InitializePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	if err := req.validate(); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cartItems, err := json.Marshal(req.CartItems)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "cartItems not serializable")
		return
	}
	shippingInfo, err := json.Marshal(req.ShippingInfo)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "shippingInfo not serializable")
		return
	}

	resp, err := h.gateway.Initialize(r.Context(), gateway.InitializeRequest{
		AmountMinor: models.ToMinorUnits(req.Amount),
		Email:       req.Email,
		Metadata: models.EventMetadata{
			OrderID:      req.OrderID,
			UserID:       req.UserID,
			CartItems:    string(cartItems),
			ShippingInfo: string(shippingInfo),
			Collection:   h.cfg.Mongo.OrdersCollection,
		},
	})
	if err != nil {
		logger.WithContext(r.Context()).Error("Payment initialization failed",
			"error", err,
			"order_id", req.OrderID,
		)
		h.writeErrorResponse(w, r, http.StatusBadGateway, "payment initialization failed")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{
		"authorizationUrl": resp.AuthorizationURL,
		"accessCode":       resp.AccessCode,
		"reference":        resp.Reference,
	})
}

// paymentCallback handles the browser redirect after checkout. It verifies
// the transaction for user-facing feedback only; fulfillment belongs to the
// webhook, so this path never writes anything and order correctness does not
// depend on it running at all.
func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("trxref")
	if reference == "" {
		reference = r.URL.Query().Get("reference")
	}
	if reference == "" {
		h.redirect(w, r, h.cfg.Redirect.FailureURL, "failed", "missing transaction reference")
		return
	}

	resp, err := h.gateway.Verify(r.Context(), reference)
	if err != nil {
		logger.WithContext(r.Context()).Error("Transaction verification failed",
			"error", err,
			"reference", reference,
		)
		h.redirect(w, r, h.cfg.Redirect.FailureURL, "failed", "could not verify transaction")
		return
	}

	if resp.Status == gateway.TransactionSuccess {
		h.redirect(w, r, h.cfg.Redirect.SuccessURL, "success", "payment confirmed")
		return
	}
	h.redirect(w, r, h.cfg.Redirect.FailureURL, resp.Status, "payment not completed")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, dest, status, message string) {
	u, err := url.Parse(dest)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "bad redirect destination")
		return
	}
	q := u.Query()
	q.Set("status", status)
	q.Set("message", message)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// paymentWebhook ingests gateway event deliveries. The signature is checked
// over the exact bytes read from the wire before anything is parsed. Only
// two paths return non-2xx: a bad signature (401) and a store failure before
// the order commit (503, so the gateway redelivers).
func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get(h.cfg.Gateway.SignatureHeader)
	if err := h.gateway.ValidateSignature(body, signature); err != nil {
		// Do not log payload contents for unauthenticated requests
		logger.WithContext(r.Context()).Warn("Rejected webhook with bad signature",
			"remote_addr", r.RemoteAddr,
			"body_bytes", len(body),
		)
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "invalid signature")
		return
	}

	ctx := context.WithValue(r.Context(), "delivery_id", uuid.NewString()) //nolint:staticcheck // string context key used intentionally for cross-package simplicity

	evt, err := models.ParseWebhookEvent(body)
	if err != nil {
		// Authenticated but permanently unparseable; retrying cannot fix it
		logger.WithContext(ctx).Error("Failed to parse webhook body", "error", err)
		h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	res, err := h.processor.Process(ctx, evt)
	if err != nil {
		logger.WithContext(ctx).Error("Order store unavailable during fulfillment", "error", err)
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, "temporarily unable to process event")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": string(res.Outcome)})
}
