package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cartloom/payment-relay/config"
	"github.com/cartloom/payment-relay/internal/models"
)

func TestHTTPSender_Send(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer mail-key" {
			t.Errorf("Unexpected auth header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := NewHTTPSender(config.MailConfig{
		APIURL:      srv.URL,
		APIKey:      "mail-key",
		FromAddress: "orders@shop.example.com",
		FromName:    "Storefront Orders",
		Timeout:     2 * time.Second,
	})

	err := s.Send(context.Background(), "buyer@example.com", "Order ord-1 confirmed", "<p>hi</p>")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if received["subject"] != "Order ord-1 confirmed" {
		t.Errorf("Unexpected subject: %v", received["subject"])
	}
	from, _ := received["from"].(map[string]any)
	if from["email"] != "orders@shop.example.com" {
		t.Errorf("Unexpected from address: %v", from["email"])
	}
}

func TestHTTPSender_SendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"message":"bad key"}]}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(config.MailConfig{APIURL: srv.URL, APIKey: "wrong", Timeout: 2 * time.Second})
	err := s.Send(context.Background(), "buyer@example.com", "subject", "<p>hi</p>")
	if err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("Error should mention status code: %v", err)
	}
}

func TestNew(t *testing.T) {
	if _, ok := New(config.MailConfig{Enabled: false}).(NoopSender); !ok {
		t.Error("Disabled mail should produce NoopSender")
	}
	if _, ok := New(config.MailConfig{Enabled: true, APIKey: "k"}).(*HTTPSender); !ok {
		t.Error("Enabled mail should produce HTTPSender")
	}
}

func TestNoopSender(t *testing.T) {
	if err := (NoopSender{}).Send(context.Background(), "a@b.c", "s", "b"); err != nil {
		t.Errorf("NoopSender must never fail: %v", err)
	}
}

func TestConfirmationBody(t *testing.T) {
	order := &models.Order{
		OrderID: "ord-1",
		Items: []models.OrderItem{
			{Name: "Blue Mug", Quantity: 2, Price: 10},
			{Name: "<script>alert(1)</script>", Quantity: 1, Price: 5.5},
		},
		ShippingInfo:     models.ShippingInfo{Name: "Ada", Address: "12 Main St", City: "Lagos", Zip: "100001"},
		TotalPrice:       25.50,
		PaymentReference: "ref-1",
	}

	body, err := ConfirmationBody(order)
	if err != nil {
		t.Fatalf("ConfirmationBody failed: %v", err)
	}

	for _, want := range []string{"ord-1", "Blue Mug", "25.50", "12 Main St", "ref-1", "Ada"} {
		if !strings.Contains(body, want) {
			t.Errorf("Body missing %q", want)
		}
	}
	if strings.Contains(body, "<script>") {
		t.Error("Item names must be HTML-escaped")
	}

	if got := ConfirmationSubject(order); got != "Order ord-1 confirmed" {
		t.Errorf("Unexpected subject: %s", got)
	}
}
