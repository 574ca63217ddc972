package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	apperrors "github.com/cartloom/payment-relay/internal/errors"
	"github.com/cartloom/payment-relay/internal/gateway"
	"github.com/cartloom/payment-relay/internal/models"
	"github.com/cartloom/payment-relay/internal/store"
)

func validInitBody() string {
	return `{
		"amount": 49.99,
		"email": "buyer@example.com",
		"orderId": "ord-1",
		"userId": "u1",
		"cartItems": [{"name":"A","quantity":2,"price":10}],
		"shippingInfo": {"name":"X","address":"12 Main St"}
	}`
}

func TestInitializePayment(t *testing.T) {
	gw := &fakeGateway{
		initResp: &gateway.InitializeResponse{
			AuthorizationURL: "https://checkout.example.com/abc",
			AccessCode:       "abc",
			Reference:        "ref-1",
		},
	}
	r := newTestRouter(store.NewMemoryStore(), gw, testConfig())

	req := httptest.NewRequest("POST", "/v1/payments/initialize", strings.NewReader(validInitBody()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["authorizationUrl"] != "https://checkout.example.com/abc" {
		t.Errorf("Unexpected authorizationUrl: %s", resp["authorizationUrl"])
	}
	if resp["reference"] != "ref-1" {
		t.Errorf("Unexpected reference: %s", resp["reference"])
	}

	// Amount converted to minor units, metadata double-encoded
	if gw.lastInit.AmountMinor != 4999 {
		t.Errorf("Expected 4999 minor units, got %d", gw.lastInit.AmountMinor)
	}
	meta := gw.lastInit.Metadata
	if meta.OrderID != "ord-1" || meta.UserID != "u1" || meta.Collection != "orders" {
		t.Errorf("Unexpected metadata: %+v", meta)
	}
	var items []models.OrderItem
	if err := json.Unmarshal([]byte(meta.CartItems), &items); err != nil || len(items) != 1 {
		t.Errorf("cartItems metadata should be a JSON string of the items: %q", meta.CartItems)
	}
	var ship models.ShippingInfo
	if err := json.Unmarshal([]byte(meta.ShippingInfo), &ship); err != nil || ship.Name != "X" {
		t.Errorf("shippingInfo metadata should be a JSON string: %q", meta.ShippingInfo)
	}
}

func TestInitializePayment_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing amount", `{"email":"a@b.c","orderId":"o","userId":"u","cartItems":[{"name":"A","quantity":1,"price":1}],"shippingInfo":{"name":"X","address":"Y"}}`},
		{"missing email", `{"amount":1,"orderId":"o","userId":"u","cartItems":[{"name":"A","quantity":1,"price":1}],"shippingInfo":{"name":"X","address":"Y"}}`},
		{"missing orderId", `{"amount":1,"email":"a@b.c","userId":"u","cartItems":[{"name":"A","quantity":1,"price":1}],"shippingInfo":{"name":"X","address":"Y"}}`},
		{"missing userId", `{"amount":1,"email":"a@b.c","orderId":"o","cartItems":[{"name":"A","quantity":1,"price":1}],"shippingInfo":{"name":"X","address":"Y"}}`},
		{"empty cartItems", `{"amount":1,"email":"a@b.c","orderId":"o","userId":"u","cartItems":[],"shippingInfo":{"name":"X","address":"Y"}}`},
		{"missing shippingInfo", `{"amount":1,"email":"a@b.c","orderId":"o","userId":"u","cartItems":[{"name":"A","quantity":1,"price":1}]}`},
		{"invalid json", `{`},
	}

	gw := &fakeGateway{}
	r := newTestRouter(store.NewMemoryStore(), gw, testConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/payments/initialize", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestInitializePayment_GatewayDown(t *testing.T) {
	gw := &fakeGateway{initErr: apperrors.GatewayError{StatusCode: 500, Message: "boom"}}
	r := newTestRouter(store.NewMemoryStore(), gw, testConfig())

	req := httptest.NewRequest("POST", "/v1/payments/initialize", strings.NewReader(validInitBody()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func redirectLocation(t *testing.T, w *httptest.ResponseRecorder) *url.URL {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Fatalf("Expected 302, got %d", w.Code)
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("Bad Location header: %v", err)
	}
	return loc
}

func TestPaymentCallback(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		verifyResp *gateway.VerifyResponse
		verifyErr  error
		wantStatus string
		wantVerify string
	}{
		{
			name:       "successful via trxref",
			query:      "?trxref=ref-1",
			verifyResp: &gateway.VerifyResponse{Status: "success", Reference: "ref-1"},
			wantStatus: "success",
		},
		{
			name:       "successful via reference",
			query:      "?reference=ref-1",
			verifyResp: &gateway.VerifyResponse{Status: "success", Reference: "ref-1"},
			wantStatus: "success",
		},
		{
			name:       "trxref wins when both present",
			query:      "?trxref=ref-1&reference=ref-2",
			verifyResp: &gateway.VerifyResponse{Status: "success", Reference: "ref-1"},
			wantStatus: "success",
			wantVerify: "ref-1",
		},
		{
			name:       "abandoned transaction",
			query:      "?reference=ref-3",
			verifyResp: &gateway.VerifyResponse{Status: "abandoned", Reference: "ref-3"},
			wantStatus: "abandoned",
		},
		{
			name:       "verification error",
			query:      "?reference=ref-4",
			verifyErr:  errors.New("gateway timeout"),
			wantStatus: "failed",
		},
		{
			name:       "missing reference",
			query:      "",
			wantStatus: "failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{verifyResp: tt.verifyResp, verifyErr: tt.verifyErr}
			r := newTestRouter(store.NewMemoryStore(), gw, testConfig())

			req := httptest.NewRequest("GET", "/v1/payments/callback"+tt.query, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			loc := redirectLocation(t, w)
			if got := loc.Query().Get("status"); got != tt.wantStatus {
				t.Errorf("Expected status %q in redirect, got %q (location %s)", tt.wantStatus, got, loc)
			}
			if tt.wantStatus == "success" && !strings.Contains(loc.Path, "/checkout/success") {
				t.Errorf("Success should redirect to success URL, got %s", loc)
			}
			if tt.wantStatus != "success" && !strings.Contains(loc.Path, "/checkout/failed") {
				t.Errorf("Non-success should redirect to failure URL, got %s", loc)
			}
			if tt.wantVerify != "" && gw.lastVerify != tt.wantVerify {
				t.Errorf("Expected verify of %q, got %q", tt.wantVerify, gw.lastVerify)
			}
		})
	}
}

func TestPaymentCallback_NoMutation(t *testing.T) {
	gw := &fakeGateway{verifyResp: &gateway.VerifyResponse{Status: "success", Reference: "ref-1"}}
	st := store.NewMemoryStore()
	r := newTestRouter(st, gw, testConfig())

	req := httptest.NewRequest("GET", "/v1/payments/callback?reference=ref-1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if st.OrderCount("orders") != 0 {
		t.Error("Callback must never create orders")
	}
}

func signedWebhookRequest(t *testing.T, signer *gateway.PaystackClient, body []byte) *http.Request {
	t.Helper()
	req := httptest.NewRequest("POST", "/v1/payments/webhook", bytes.NewReader(body))
	req.Header.Set("x-paystack-signature", signer.Sign(body))
	return req
}

func webhookBody(orderID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "charge.success",
		"data": {
			"amount": 2000,
			"reference": "ref-1",
			"customer": {"email": "buyer@example.com"},
			"metadata": {
				"orderId": %q,
				"userId": "u1",
				"cartItems": "[{\"name\":\"A\",\"quantity\":2,\"price\":10}]",
				"shippingInfo": "{\"name\":\"X\",\"address\":\"12 Main St\"}",
				"collection": "orders"
			}
		}
	}`, orderID))
}

func TestPaymentWebhook_FulfillsOrder(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := store.NewMemoryStore()
	r := newTestRouter(st, signer, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhookRequest(t, signer, webhookBody("ord-1")))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	order, err := st.GetOrder(context.Background(), "orders", "ord-1")
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if order == nil {
		t.Fatal("Order should exist after webhook")
	}
	if order.TotalPrice != 20.00 {
		t.Errorf("Expected totalPrice 20.00, got %v", order.TotalPrice)
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("Expected paymentStatus paid, got %s", order.PaymentStatus)
	}

	cart, ok := st.Cart("u1")
	if !ok || len(cart.Items) != 0 {
		t.Error("Cart should be cleared after fulfillment")
	}
}

func TestPaymentWebhook_Redelivery(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := store.NewMemoryStore()
	r := newTestRouter(st, signer, cfg)

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, signedWebhookRequest(t, signer, webhookBody("ord-1")))
		if w.Code != http.StatusOK {
			t.Fatalf("Delivery %d: expected 200, got %d", i+1, w.Code)
		}
	}

	if got := st.OrderCount("orders"); got != 1 {
		t.Errorf("Expected exactly one order after redeliveries, got %d", got)
	}
}

func TestPaymentWebhook_BadSignature(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := store.NewMemoryStore()
	r := newTestRouter(st, signer, cfg)

	tests := []struct {
		name      string
		signature string
	}{
		{"missing header", ""},
		{"wrong signature", strings.Repeat("ab", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/payments/webhook", bytes.NewReader(webhookBody("ord-sig")))
			if tt.signature != "" {
				req.Header.Set("x-paystack-signature", tt.signature)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected 401, got %d", w.Code)
			}
		})
	}

	if st.OrderCount("orders") != 0 {
		t.Error("Rejected webhooks must have zero side effects")
	}
}

func TestPaymentWebhook_TamperedBody(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := store.NewMemoryStore()
	r := newTestRouter(st, signer, cfg)

	// Sign one body, deliver another
	req := httptest.NewRequest("POST", "/v1/payments/webhook", bytes.NewReader(webhookBody("ord-tampered")))
	req.Header.Set("x-paystack-signature", signer.Sign(webhookBody("ord-original")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for tampered body, got %d", w.Code)
	}
	if st.OrderCount("orders") != 0 {
		t.Error("Tampered webhook must have zero side effects")
	}
}

func TestPaymentWebhook_IgnoredEventType(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := store.NewMemoryStore()
	r := newTestRouter(st, signer, cfg)

	body := []byte(`{"event":"transfer.success","data":{"amount":500,"reference":"ref-x"}}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhookRequest(t, signer, body))

	if w.Code != http.StatusOK {
		t.Errorf("Non-actioned events must still acknowledge, got %d", w.Code)
	}
	if st.OrderCount("orders") != 0 {
		t.Error("Non-actioned events must have zero side effects")
	}
}

func TestPaymentWebhook_UnparseableBody(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	r := newTestRouter(store.NewMemoryStore(), signer, cfg)

	body := []byte(`this is not json`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhookRequest(t, signer, body))

	// Authenticated but permanently malformed: ack so the gateway stops retrying
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for signed-but-unparseable body, got %d", w.Code)
	}
}

func TestPaymentWebhook_StoreDown(t *testing.T) {
	cfg := testConfig()
	signer := gateway.NewPaystack(cfg.Gateway)
	st := &downStore{MemoryStore: store.NewMemoryStore()}
	r := newTestRouter(st, signer, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedWebhookRequest(t, signer, webhookBody("ord-down")))

	// No order was committed, so a non-2xx invites redelivery
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the order write failed, got %d", w.Code)
	}
}

// downStore fails all order writes
type downStore struct {
	*store.MemoryStore
}

func (s *downStore) CreateOrder(ctx context.Context, partition string, order *models.Order) (bool, error) {
	return false, apperrors.StoreError{Operation: "create order", Err: errors.New("no reachable servers")}
}
