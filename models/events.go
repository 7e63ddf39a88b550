package models

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published to SNS and Kafka whenever an order is created or
// changes status.
type OrderEvent struct {
	Type          string      `json:"type"`
	OrderID       string      `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	CustomerPhone string      `json:"customer_phone"`
	OldStatus     OrderStatus `json:"old_status,omitempty"`
	NewStatus     OrderStatus `json:"new_status"`
	Total         string      `json:"total,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// StatusWebhookRequest is the payload accepted by the status webhook and the
// order-status queue.
type StatusWebhookRequest struct {
	OrderID   string `json:"order_id"`
	NewStatus string `json:"new_status"`
	OldStatus string `json:"old_status,omitempty"`
}

type StatusWebhookResponse struct {
	OrderID       string      `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	CustomerPhone string      `json:"customer_phone"`
	OldStatus     OrderStatus `json:"old_status"`
	NewStatus     OrderStatus `json:"new_status"`
	Applied       bool        `json:"applied"`
}

type CleanupResult struct {
	ReservationsReleased int       `json:"reservations_released"`
	OrdersCancelled      int       `json:"orders_cancelled"`
	Timestamp            time.Time `json:"timestamp"`
}
