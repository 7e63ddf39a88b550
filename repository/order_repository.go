package repository

import (
	"context"
	"time"

	"storefront-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository defines order persistence. Status writes use the Version
// column for optimistic concurrency.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPhone(ctx context.Context, phone string) ([]models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) ([]models.Order, error)
	FindStalePending(ctx context.Context, now time.Time, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, order *models.Order) error
}

type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return translateError(r.db.WithContext(ctx).Create(order).Error)
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

func (r *GormOrderRepository) FindByPhone(ctx context.Context, phone string) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("customer_phone = ?", phone).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_number = ?", orderNumber).
		Find(&orders).Error
	return orders, err
}

// FindStalePending returns PENDING orders whose reservation window has closed.
func (r *GormOrderRepository) FindStalePending(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	orders := []models.Order{}
	err := r.db.WithContext(ctx).
		Where("status = ? AND reserved_until IS NOT NULL AND reserved_until <= ?", models.OrderStatusPending, now).
		Order("reserved_until ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// UpdateStatus persists the lifecycle columns of order if its Version still
// matches the stored row, then bumps order.Version.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, order *models.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"status":         order.Status,
			"reserved_until": order.ReservedUntil,
			"confirmed_at":   order.ConfirmedAt,
			"shipped_at":     order.ShippedAt,
			"delivered_at":   order.DeliveredAt,
			"cancelled_at":   order.CancelledAt,
			"version":        order.Version + 1,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrOptimisticLock
	}
	order.Version++
	return nil
}
