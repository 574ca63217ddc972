package models

import "time"

// Order lifecycle values. An order is created directly in processing state by
// the webhook flow; nothing in this service mutates it afterwards.
const (
	OrderStatusProcessing = "processing"
	PaymentStatusPaid     = "paid"
)

// OrderItem is a single purchased line item
type OrderItem struct {
	Name     string  `json:"name" bson:"name"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Price    float64 `json:"price" bson:"price"`
}

// ShippingInfo is the delivery destination captured at checkout
type ShippingInfo struct {
	Name    string `json:"name" bson:"name"`
	Address string `json:"address" bson:"address"`
	City    string `json:"city,omitempty" bson:"city,omitempty"`
	Zip     string `json:"zip,omitempty" bson:"zip,omitempty"`
}

// Order is the fulfillment record written exactly once per checkout.
// OrderID is caller-supplied and acts as the idempotency key: the store
// enforces uniqueness so redelivered webhooks cannot produce a second record.
type Order struct {
	OrderID          string       `json:"orderId" bson:"order_id"`
	UserID           string       `json:"userId" bson:"user_id"`
	Items            []OrderItem  `json:"items" bson:"items"`
	ShippingInfo     ShippingInfo `json:"shippingInfo" bson:"shipping_info"`
	TotalPrice       float64      `json:"totalPrice" bson:"total_price"`
	PaymentStatus    string       `json:"paymentStatus" bson:"payment_status"`
	PaymentReference string       `json:"paymentReference" bson:"payment_reference"`
	Status           string       `json:"status" bson:"status"`
	CustomerEmail    string       `json:"customerEmail,omitempty" bson:"customer_email,omitempty"`
	CreatedAt        time.Time    `json:"createdAt" bson:"created_at"`
}

// Cart is a user's open cart. The relay only ever empties it after a
// successful order create.
type Cart struct {
	UserID    string      `json:"userId" bson:"user_id"`
	Items     []OrderItem `json:"items" bson:"items"`
	UpdatedAt time.Time   `json:"updatedAt" bson:"updated_at"`
}
