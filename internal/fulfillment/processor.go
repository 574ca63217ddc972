package fulfillment

import (
	"context"
	"time"

	"github.com/cartloom/payment-relay/internal/events"
	"github.com/cartloom/payment-relay/internal/logger"
	"github.com/cartloom/payment-relay/internal/mailer"
	"github.com/cartloom/payment-relay/internal/metrics"
	"github.com/cartloom/payment-relay/internal/models"
	"github.com/cartloom/payment-relay/internal/store"
)

// Outcome classifies how the pipeline disposed of an event. Every outcome is
// acknowledged to the gateway; only a store failure before the order commit
// (returned as an error, not an outcome) asks for redelivery.
type Outcome string

const (
	OutcomeFulfilled Outcome = "fulfilled" // order created, side effects ran
	OutcomeDuplicate Outcome = "duplicate" // order already existed
	OutcomeIgnored   Outcome = "ignored"   // event type we don't action
	OutcomeMalformed Outcome = "malformed" // data contract violation, not retryable
)

// Result is the pipeline's disposition of one delivery
type Result struct {
	Outcome Outcome
	OrderID string
	Detail  string
}

// Processor runs the fulfillment pipeline for authenticated webhook events.
// Stages execute in a fixed order and a stage that resolves the delivery
// short-circuits the rest. Cart clear, email, and event publication run after
// the order commit and are never allowed to undo or fail it.
type Processor struct {
	store     store.OrderStore
	mail      mailer.Sender
	publisher events.Publisher
	now       func() time.Time
}

func NewProcessor(st store.OrderStore, mail mailer.Sender, pub events.Publisher) *Processor {
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	return &Processor{
		store:     st,
		mail:      mail,
		publisher: pub,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// job carries state across pipeline stages for a single delivery
type job struct {
	evt      *models.WebhookEvent
	items    []models.OrderItem
	shipping models.ShippingInfo
	order    *models.Order
}

// stage inspects the job and either resolves the delivery (non-nil Result),
// fails it retryably (error), or passes it on.
type stage func(ctx context.Context, j *job) (*Result, error)

// Process runs an already-authenticated event through the pipeline. The
// returned error means the order was not committed and the gateway should
// redeliver; every other path acknowledges.
func (p *Processor) Process(ctx context.Context, evt *models.WebhookEvent) (Result, error) {
	j := &job{evt: evt}

	stages := []stage{
		p.filterEventType,
		p.validateMetadata,
		p.decodePayloads,
		p.createOrder,
		p.clearCart,
		p.sendConfirmation,
		p.publishEvent,
	}

	for _, s := range stages {
		res, err := s(ctx, j)
		if err != nil {
			return Result{}, err
		}
		if res != nil {
			metrics.RecordWebhookEvent(string(res.Outcome))
			return *res, nil
		}
	}

	metrics.RecordWebhookEvent(string(OutcomeFulfilled))
	return Result{Outcome: OutcomeFulfilled, OrderID: j.order.OrderID}, nil
}

// filterEventType acknowledges everything except charge.success
func (p *Processor) filterEventType(ctx context.Context, j *job) (*Result, error) {
	if j.evt.Event != models.EventChargeSuccess {
		logger.WithContext(ctx).Debug("Ignoring webhook event", "event", j.evt.Event)
		return &Result{Outcome: OutcomeIgnored, Detail: j.evt.Event}, nil
	}
	return nil, nil
}

// validateMetadata rejects events missing required checkout context. These
// are permanently malformed: the gateway redelivering them cannot help, so
// they resolve as acknowledged rather than failed.
func (p *Processor) validateMetadata(ctx context.Context, j *job) (*Result, error) {
	if err := j.evt.Data.Metadata.Validate(); err != nil {
		logger.WithContext(ctx).Error("Webhook event violates metadata contract",
			"error", err,
			"reference", j.evt.Data.Reference,
		)
		return &Result{Outcome: OutcomeMalformed, Detail: err.Error()}, nil
	}
	return nil, nil
}

// decodePayloads unwraps the double-encoded cart and shipping payloads
func (p *Processor) decodePayloads(ctx context.Context, j *job) (*Result, error) {
	meta := j.evt.Data.Metadata

	items, err := meta.DecodeCartItems()
	if err != nil {
		logger.WithContext(ctx).Error("Failed to decode cart items",
			"error", err,
			"order_id", meta.OrderID,
		)
		return &Result{Outcome: OutcomeMalformed, OrderID: meta.OrderID, Detail: err.Error()}, nil
	}
	shipping, err := meta.DecodeShippingInfo()
	if err != nil {
		logger.WithContext(ctx).Error("Failed to decode shipping info",
			"error", err,
			"order_id", meta.OrderID,
		)
		return &Result{Outcome: OutcomeMalformed, OrderID: meta.OrderID, Detail: err.Error()}, nil
	}

	j.items = items
	j.shipping = shipping
	return nil, nil
}

// createOrder looks up the order and performs the conditional create. The
// lookup handles the common redelivery fast path; the create itself is still
// atomic, so the losing side of two concurrent deliveries resolves as a
// duplicate here rather than writing twice.
func (p *Processor) createOrder(ctx context.Context, j *job) (*Result, error) {
	meta := j.evt.Data.Metadata

	existing, err := p.store.GetOrder(ctx, meta.Collection, meta.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.WithContext(ctx).Info("Webhook redelivery for existing order", "order_id", meta.OrderID)
		return &Result{Outcome: OutcomeDuplicate, OrderID: meta.OrderID}, nil
	}

	order := &models.Order{
		OrderID:          meta.OrderID,
		UserID:           meta.UserID,
		Items:            j.items,
		ShippingInfo:     j.shipping,
		TotalPrice:       models.FromMinorUnits(j.evt.Data.Amount),
		PaymentStatus:    models.PaymentStatusPaid,
		PaymentReference: j.evt.Data.Reference,
		Status:           models.OrderStatusProcessing,
		CustomerEmail:    j.evt.Data.Customer.Email,
		CreatedAt:        p.now(),
	}

	created, err := p.store.CreateOrder(ctx, meta.Collection, order)
	if err != nil {
		// Nothing was committed; failing here lets the gateway redeliver.
		return nil, err
	}
	if !created {
		logger.WithContext(ctx).Info("Lost conditional create race, treating as duplicate", "order_id", meta.OrderID)
		return &Result{Outcome: OutcomeDuplicate, OrderID: meta.OrderID}, nil
	}

	logger.WithContext(ctx).Info("Order created",
		"order_id", order.OrderID,
		"user_id", order.UserID,
		"total_price", order.TotalPrice,
		"reference", order.PaymentReference,
	)
	j.order = order
	return nil, nil
}

// clearCart empties the buyer's cart. The order is already committed, so a
// failure here is logged and the delivery still acknowledges.
func (p *Processor) clearCart(ctx context.Context, j *job) (*Result, error) {
	if err := p.store.ClearCart(ctx, j.order.UserID); err != nil {
		logger.WithContext(ctx).Error("Failed to clear cart after order create",
			"error", err,
			"order_id", j.order.OrderID,
			"user_id", j.order.UserID,
		)
	}
	return nil, nil
}

// sendConfirmation emails the buyer, best-effort
func (p *Processor) sendConfirmation(ctx context.Context, j *job) (*Result, error) {
	to := j.order.CustomerEmail
	if to == "" {
		logger.WithContext(ctx).Warn("No customer email on event; skipping confirmation", "order_id", j.order.OrderID)
		return nil, nil
	}

	body, err := mailer.ConfirmationBody(j.order)
	if err == nil {
		err = p.mail.Send(ctx, to, mailer.ConfirmationSubject(j.order), body)
	}
	if err != nil {
		metrics.RecordEmail("failed")
		logger.WithContext(ctx).Error("Failed to send confirmation email",
			"error", err,
			"order_id", j.order.OrderID,
		)
		return nil, nil
	}
	metrics.RecordEmail("sent")
	return nil, nil
}

// publishEvent announces the fulfillment, best-effort
func (p *Processor) publishEvent(ctx context.Context, j *job) (*Result, error) {
	if err := p.publisher.PublishOrderCreated(ctx, j.order); err != nil {
		logger.WithContext(ctx).Warn("Failed to publish order event",
			"error", err,
			"order_id", j.order.OrderID,
		)
	}
	return nil, nil
}
