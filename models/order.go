package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderTransitions is the complete lifecycle graph. DELIVERED and CANCELLED
// have no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// ParseOrderStatus maps a case-insensitive string onto a known status.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

type ShippingAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber     string          `gorm:"uniqueIndex;not null" json:"order_number"`
	CustomerName    string          `gorm:"not null" json:"customer_name"`
	CustomerPhone   string          `gorm:"not null;index" json:"customer_phone"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	ShippingAddress ShippingAddress `gorm:"serializer:json;type:jsonb" json:"shipping_address"`
	PaymentMethod   string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	CouponCode      string          `gorm:"type:varchar(64)" json:"coupon_code,omitempty"`
	Discount        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount"`
	Shipping        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	ReservedUntil   *time.Time      `json:"reserved_until,omitempty"`
	Version         int             `gorm:"not null" json:"-"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
}

// OrderItem snapshots the product at purchase time.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	VariantID   uuid.UUID       `gorm:"type:uuid;not null" json:"variant_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"`
}

// OrderItemInput selects a variant either by id, by size/color, or
// implicitly when the product has a single variant.
type OrderItemInput struct {
	ProductID uuid.UUID  `json:"product_id" validate:"required"`
	VariantID *uuid.UUID `json:"variant_id"`
	Size      string     `json:"size"`
	Color     string     `json:"color"`
	Quantity  int        `json:"quantity" validate:"gt=0"`
}

type CreateOrderRequest struct {
	CustomerName    string           `json:"customer_name" validate:"required"`
	CustomerPhone   string           `json:"customer_phone" validate:"required"`
	CustomerEmail   string           `json:"customer_email" validate:"omitempty,email"`
	ShippingAddress ShippingAddress  `json:"shipping_address"`
	PaymentMethod   string           `json:"payment_method"`
	CouponCode      string           `json:"coupon_code"`
	Items           []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	WhatsAppURL string    `json:"whatsapp_url"`
	Order       *Order    `json:"order"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// OrderFilter requires exactly one of its fields.
type OrderFilter struct {
	Phone       string
	OrderNumber string
}
