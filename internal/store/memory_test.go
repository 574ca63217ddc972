package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartloom/payment-relay/internal/models"
)

func testOrder(orderID string) *models.Order {
	return &models.Order{
		OrderID:          orderID,
		UserID:           "u1",
		Items:            []models.OrderItem{{Name: "A", Quantity: 2, Price: 10}},
		ShippingInfo:     models.ShippingInfo{Name: "X", Address: "12 Main St"},
		TotalPrice:       20.00,
		PaymentStatus:    models.PaymentStatusPaid,
		PaymentReference: "ref-1",
		Status:           models.OrderStatusProcessing,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestMemoryStore_CreateOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	created, err := s.CreateOrder(ctx, "orders", testOrder("ord-1"))
	require.NoError(t, err)
	assert.True(t, created)

	// Second create for the same order ID reports already-exists
	created, err = s.CreateOrder(ctx, "orders", testOrder("ord-1"))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, 1, s.OrderCount("orders"))

	// Same ID in a different partition is a distinct order
	created, err = s.CreateOrder(ctx, "other", testOrder("ord-1"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestMemoryStore_GetOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.GetOrder(ctx, "orders", "ord-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.CreateOrder(ctx, "orders", testOrder("ord-1"))
	require.NoError(t, err)

	got, err = s.GetOrder(ctx, "orders", "ord-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ord-1", got.OrderID)
	assert.Equal(t, 20.00, got.TotalPrice)
	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
}

func TestMemoryStore_ClearCart(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.ClearCart(ctx, "u1"))

	cart, ok := s.Cart("u1")
	require.True(t, ok)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "u1", cart.UserID)
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const attempts = 50
	var wg sync.WaitGroup
	results := make(chan bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateOrder(ctx, "orders", testOrder("ord-race"))
			require.NoError(t, err)
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for created := range results {
		if created {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent create must win")
	assert.Equal(t, 1, s.OrderCount("orders"))
}

func TestMemoryStore_Health(t *testing.T) {
	assert.NoError(t, NewMemoryStore().Health(context.Background()))
}
