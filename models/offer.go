package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is how an offer reduces the subtotal.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Offer is a promotion redeemable with a coupon code. Codes are stored
// upper-case.
type Offer struct {
	ID            uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Title         string              `gorm:"not null" json:"title"`
	Description   string              `json:"description"`
	Code          string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	DiscountType  DiscountType        `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MinOrderValue decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"min_order_value"`
	MaxDiscount   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"max_discount"`
	UsageLimit    int                 `gorm:"not null;default:0" json:"usage_limit"` // 0 = unlimited
	UsedCount     int                 `gorm:"not null;default:0" json:"used_count"`
	ValidFrom     time.Time           `gorm:"not null;index" json:"valid_from"`
	ValidTill     *time.Time          `json:"valid_till,omitempty"`
	Active        bool                `gorm:"not null;index" json:"active"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (o Offer) Started(now time.Time) bool {
	return !o.ValidFrom.After(now)
}

func (o Offer) Expired(now time.Time) bool {
	return o.ValidTill != nil && o.ValidTill.Before(now)
}

func (o Offer) Exhausted() bool {
	return o.UsageLimit > 0 && o.UsedCount >= o.UsageLimit
}

// Discount is the amount taken off subtotal. Percentages round to whole
// currency units; the result never exceeds MaxDiscount or the subtotal.
func (o Offer) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch o.DiscountType {
	case DiscountPercentage:
		d = subtotal.Mul(o.DiscountValue).Div(decimal.NewFromInt(100)).Round(0)
	case DiscountFixed:
		d = o.DiscountValue
	}
	if o.MaxDiscount.Valid && d.GreaterThan(o.MaxDiscount.Decimal) {
		d = o.MaxDiscount.Decimal
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

type CreateOfferRequest struct {
	Title         string           `json:"title" validate:"required"`
	Description   string           `json:"description"`
	Code          string           `json:"code" validate:"required,min=3,max=64"`
	DiscountType  DiscountType     `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal  `json:"discount_value"`
	MinOrderValue *decimal.Decimal `json:"min_order_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount"`
	UsageLimit    int              `json:"usage_limit" validate:"gte=0"`
	ValidFrom     *time.Time       `json:"valid_from"`
	ValidTill     *time.Time       `json:"valid_till"`
	Active        *bool            `json:"active"`
}

type SetOfferActiveRequest struct {
	Active *bool `json:"active"`
}

type ValidateOfferRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// OfferSummary is the public view of an offer returned on validation.
type OfferSummary struct {
	ID            uuid.UUID       `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
}

type AppliedDiscount struct {
	Amount decimal.Decimal `json:"amount"`
	Type   DiscountType    `json:"type"`
	Value  decimal.Decimal `json:"value"`
}

type ValidateOfferResponse struct {
	Valid      bool            `json:"valid"`
	Offer      OfferSummary    `json:"offer"`
	Discount   AppliedDiscount `json:"discount"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	FinalTotal decimal.Decimal `json:"final_total"`
}
