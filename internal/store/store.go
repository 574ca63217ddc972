package store

import (
	"context"

	"github.com/cartloom/payment-relay/config"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/models"
)

// OrderStore is the order-store collaborator contract. CreateOrder is an
// atomic create-if-absent keyed by order ID within a partition (collection):
// it reports created=false without error when a document already exists.
// Two concurrent deliveries of the same event may both pass a read check, so
// implementations must enforce uniqueness in the write itself, never with a
// read-then-write sequence.
type OrderStore interface {
	CreateOrder(ctx context.Context, partition string, order *models.Order) (created bool, err error)
	GetOrder(ctx context.Context, partition, orderID string) (*models.Order, error)
	ClearCart(ctx context.Context, userID string) error
	Health(ctx context.Context) error
}

// New creates an OrderStore backed by MongoDB when configured, falling back
// to the in-memory store otherwise.
func New(ctx context.Context, cfg config.MongoConfig) (OrderStore, error) {
	if cfg.URI == "" {
		logger.Info("MONGO_URI not set; using in-memory order store")
		return NewMemoryStore(), nil
	}
	return NewMongoStore(ctx, cfg)
}
