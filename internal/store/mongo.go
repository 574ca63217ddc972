package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cartloom/payment-relay/config"
	apperrors "github.com/cartloom/payment-relay/internal/errors"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/models"
)

// MongoStore implements OrderStore on a MongoDB database. The unique index
// on order_id makes InsertOne the conditional-create primitive: the losing
// side of a concurrent duplicate delivery gets a duplicate key error, not a
// second document.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    config.MongoConfig

	indexMu sync.Mutex
	indexed map[string]bool
}

// NewMongoStore connects to MongoDB and prepares the default orders collection
func NewMongoStore(ctx context.Context, cfg config.MongoConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := &MongoStore{
		client:  client,
		db:      client.Database(cfg.Database),
		cfg:     cfg,
		indexed: make(map[string]bool),
	}

	if err := s.ensureOrderIndex(ctx, cfg.OrdersCollection); err != nil {
		return nil, err
	}

	logger.Info("Connected to MongoDB",
		"database", cfg.Database,
		"orders_collection", cfg.OrdersCollection,
	)

	return s, nil
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ensureOrderIndex creates the unique order_id index once per collection
func (s *MongoStore) ensureOrderIndex(ctx context.Context, collection string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexed[collection] {
		return nil
	}

	_, err := s.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create order_id index on %s: %w", collection, err)
	}
	s.indexed[collection] = true
	return nil
}

func (s *MongoStore) ordersCollection(partition string) string {
	if partition == "" {
		return s.cfg.OrdersCollection
	}
	return partition
}

// CreateOrder inserts the order unless one already exists for its order ID
func (s *MongoStore) CreateOrder(ctx context.Context, partition string, order *models.Order) (bool, error) {
	coll := s.ordersCollection(partition)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if err := s.ensureOrderIndex(ctx, coll); err != nil {
		return false, apperrors.StoreError{Operation: "ensure index", Err: err}
	}

	_, err := s.db.Collection(coll).InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, apperrors.StoreError{Operation: "create order", Err: err}
	}
	return true, nil
}

// GetOrder returns the order or nil when absent
func (s *MongoStore) GetOrder(ctx context.Context, partition, orderID string) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	var order models.Order
	err := s.db.Collection(s.ordersCollection(partition)).
		FindOne(ctx, bson.M{"order_id": orderID}).
		Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, apperrors.StoreError{Operation: "get order", Err: err}
	}
	return &order, nil
}

// ClearCart empties the user's cart, creating the cart document if missing
func (s *MongoStore) ClearCart(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	_, err := s.db.Collection(s.cfg.CartsCollection).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"items": []models.OrderItem{}, "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return apperrors.StoreError{Operation: "clear cart", Err: err}
	}
	return nil
}

// Health pings the database
func (s *MongoStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.client.Ping(ctx, nil)
}
