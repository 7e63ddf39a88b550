package models

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "ACTIVE"
	ReservationReleased ReservationStatus = "RELEASED"
	ReservationConsumed ReservationStatus = "CONSUMED"
)

// Reservation holds Quantity units of a variant for an order. Only ACTIVE
// reservations count towards Variant.ReservedQty. A nil ExpiresAt never
// expires.
type Reservation struct {
	ID         uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"product_id"`
	VariantID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"variant_id"`
	Quantity   int               `gorm:"not null;check:quantity > 0" json:"quantity"`
	Status     ReservationStatus `gorm:"type:varchar(20);not null;index:idx_reservation_sweep,priority:1" json:"status"`
	ExpiresAt  *time.Time        `gorm:"index:idx_reservation_sweep,priority:2" json:"expires_at,omitempty"`
	ReleasedAt *time.Time        `json:"released_at,omitempty"`
	ConsumedAt *time.Time        `json:"consumed_at,omitempty"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

func (r *Reservation) IsActive() bool {
	return r.Status == ReservationActive
}

// Expired reports whether an active reservation has passed its expiry at now.
func (r *Reservation) Expired(now time.Time) bool {
	return r.IsActive() && r.ExpiresAt != nil && !r.ExpiresAt.After(now)
}
