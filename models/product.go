package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock lives on its variants.
type Product struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string          `gorm:"not null" json:"name"`
	Slug         string          `gorm:"uniqueIndex;not null" json:"slug"`
	Description  string          `json:"description"`
	BasePrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"base_price"`
	MainCategory string          `gorm:"index" json:"main_category"`
	Category     string          `gorm:"index" json:"category"`
	Active       bool            `gorm:"not null" json:"active"`
	Variants     []Variant       `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Variant is a purchasable configuration of a product. StockQty is the
// quantity still available for new reservations; ReservedQty is held by
// active reservations.
type Variant struct {
	ID          uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ProductID   uuid.UUID           `gorm:"type:uuid;not null;index" json:"product_id"`
	SKU         string              `gorm:"index" json:"sku"`
	Size        string              `json:"size,omitempty"`
	Color       string              `json:"color,omitempty"`
	Price       decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
	StockQty    int                 `gorm:"not null;check:stock_qty >= 0" json:"stock"`
	ReservedQty int                 `gorm:"not null;check:reserved_qty >= 0" json:"reserved"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// UnitPrice returns the variant price override, falling back to the base price.
func (v Variant) UnitPrice(basePrice decimal.Decimal) decimal.Decimal {
	if v.Price.Valid {
		return v.Price.Decimal
	}
	return basePrice
}

// ProductFilter narrows listProducts. Empty fields are ignored.
type ProductFilter struct {
	MainCategory string
	Category     string
	Active       *bool
}

// VariantInput describes a variant in create and update payloads.
// Stock may be sent as either "stock" or "stock_qty".
type VariantInput struct {
	SKU      string           `json:"sku"`
	Size     string           `json:"size"`
	Color    string           `json:"color"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock" validate:"omitempty,gte=0"`
	StockQty *int             `json:"stock_qty" validate:"omitempty,gte=0"`
}

// Quantity returns the initial stock carried by the input.
func (v VariantInput) Quantity() int {
	switch {
	case v.Stock != nil:
		return *v.Stock
	case v.StockQty != nil:
		return *v.StockQty
	}
	return 0
}

type CreateProductRequest struct {
	Name         string           `json:"name" validate:"required"`
	Slug         string           `json:"slug"`
	Description  string           `json:"description"`
	BasePrice    *decimal.Decimal `json:"base_price" validate:"required"`
	MainCategory string           `json:"main_category"`
	Category     string           `json:"category"`
	Active       *bool            `json:"active"`
	Variants     []VariantInput   `json:"variants" validate:"dive"`
}

// UpdateProductRequest is a partial update. Nil fields are left untouched;
// a non-nil Variants replaces the whole variant set.
type UpdateProductRequest struct {
	Name         *string          `json:"name"`
	Slug         *string          `json:"slug"`
	Description  *string          `json:"description"`
	BasePrice    *decimal.Decimal `json:"base_price"`
	MainCategory *string          `json:"main_category"`
	Category     *string          `json:"category"`
	Active       *bool            `json:"active"`
	Variants     *[]VariantInput  `json:"variants"`
}
