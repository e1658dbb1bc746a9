package domain

import "time"

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusInTransit  OrderStatus = "in_transit"
	OrderStatusDelivered  OrderStatus = "delivered"
)

// Order is a customer order looked up during the tracking flow.
type Order struct {
	OrderID        string      `json:"orderId"`
	Email          string      `json:"email"`
	Status         OrderStatus `json:"status"`
	Carrier        string      `json:"carrier,omitempty"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	PlacedAt       time.Time   `json:"placedAt"`
}

// OrderEvent is one entry in an order's fulfillment timeline.
type OrderEvent struct {
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	Location    string      `json:"location,omitempty"`
	OccurredAt  time.Time   `json:"occurredAt"`
}
