package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/cartloom/payment-relay/config"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/models"
)

// Publisher announces completed fulfillments. Publishing is best-effort: the
// order is already committed by the time an event goes out, so a publish
// failure is logged and never surfaced to the webhook response.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	Close()
}

type OrderCreatedEvent struct {
	OrderID          string  `json:"order_id"`
	UserID           string  `json:"user_id"`
	TotalPrice       float64 `json:"total_price"`
	PaymentReference string  `json:"payment_reference"`
	CreatedAt        string  `json:"created_at"`
}

// NATSPublisher publishes order events to a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(cfg config.EventsConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.NATSURL,
		nats.Name("payment-relay"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", "url", cfg.NATSURL, "subject", cfg.Subject)
	return &NATSPublisher{nc: nc, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	evt := OrderCreatedEvent{
		OrderID:          order.OrderID,
		UserID:           order.UserID,
		TotalPrice:       order.TotalPrice,
		PaymentReference: order.PaymentReference,
		CreatedAt:        order.CreatedAt.Format(time.RFC3339),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
		return fmt.Errorf("flush order event: %w", err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}

// NoopPublisher is used when no NATS URL is configured
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error { return nil }
func (NoopPublisher) Close()                                                             {}

// New returns the configured publisher, or a no-op when events are disabled
func New(cfg config.EventsConfig) (Publisher, error) {
	if cfg.NATSURL == "" {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(cfg)
}
