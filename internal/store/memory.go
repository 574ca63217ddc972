package store

import (
	"context"
	"sync"
	"time"

	"github.com/cartloom/payment-relay/internal/models"
)

// MemoryStore implements OrderStore with in-process maps. Used when no
// database is configured and throughout the test suites. The create-if-absent
// check runs under the write lock, preserving the same atomicity contract the
// Mongo unique index provides.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]map[string]models.Order // partition -> order_id -> order
	carts  map[string]models.Cart
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]map[string]models.Order),
		carts:  make(map[string]models.Cart),
	}
}

// CreateOrder stores the order unless one already exists for its order ID
func (s *MemoryStore) CreateOrder(ctx context.Context, partition string, order *models.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.orders[partition]
	if !ok {
		coll = make(map[string]models.Order)
		s.orders[partition] = coll
	}
	if _, exists := coll[order.OrderID]; exists {
		return false, nil
	}
	coll[order.OrderID] = *order
	return true, nil
}

// GetOrder returns the order or nil when absent
func (s *MemoryStore) GetOrder(ctx context.Context, partition, orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if coll, ok := s.orders[partition]; ok {
		if order, exists := coll[orderID]; exists {
			copy := order
			return &copy, nil
		}
	}
	return nil, nil
}

// ClearCart empties the user's cart, creating it if missing
func (s *MemoryStore) ClearCart(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.carts[userID] = models.Cart{
		UserID:    userID,
		Items:     []models.OrderItem{},
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Cart returns the stored cart for a user, if any. Test helper.
func (s *MemoryStore) Cart(userID string) (models.Cart, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[userID]
	return c, ok
}

// OrderCount reports the number of orders in a partition. Test helper.
func (s *MemoryStore) OrderCount(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders[partition])
}

// Health always succeeds for the in-memory store
func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}
