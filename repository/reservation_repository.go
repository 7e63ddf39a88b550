package repository

import (
	"context"
	"fmt"
	"time"

	"storefront-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationRepository is the transactional boundary for stock movements.
// Every method that changes a variant's counters locks the variant row (or
// the reservation row) for the duration of its transaction.
type ReservationRepository interface {
	// Reserve moves Quantity from stock to reserved and inserts res.
	Reserve(ctx context.Context, res *models.Reservation) error
	// Release returns an active reservation's quantity to stock. released is
	// false when the reservation was already inactive.
	Release(ctx context.Context, id uuid.UUID, at time.Time) (res *models.Reservation, released bool, err error)
	// ReleaseExpired behaves like Release but only when the reservation is
	// still active and its expiry is at or before now.
	ReleaseExpired(ctx context.Context, id uuid.UUID, now time.Time) (res *models.Reservation, released bool, err error)
	// Consume marks an active reservation as fulfilled; the units leave
	// inventory for good.
	Consume(ctx context.Context, id uuid.UUID, at time.Time) (res *models.Reservation, consumed bool, err error)
	// Hold clears the expiry of every active reservation of the order, or
	// of none: it fails with ErrReservationsLapsed when any of them has
	// already been released.
	Hold(ctx context.Context, orderID uuid.UUID) error
	// RestoreExpiry undoes Hold for the order's active reservations.
	RestoreExpiry(ctx context.Context, orderID uuid.UUID, expiresAt time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error)
}

type GormReservationRepository struct {
	db *gorm.DB
}

func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

func (r *GormReservationRepository) Reserve(ctx context.Context, res *models.Reservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var variant models.Variant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&variant, "id = ?", res.VariantID).Error
		if err != nil {
			return translateError(err)
		}
		if variant.StockQty < res.Quantity {
			return fmt.Errorf("%w: variant %s has %d available, %d requested",
				ErrInsufficientStock, variant.ID, variant.StockQty, res.Quantity)
		}

		err = tx.Model(&models.Variant{}).Where("id = ?", variant.ID).Updates(map[string]interface{}{
			"stock_qty":    gorm.Expr("stock_qty - ?", res.Quantity),
			"reserved_qty": gorm.Expr("reserved_qty + ?", res.Quantity),
			"updated_at":   time.Now(),
		}).Error
		if err != nil {
			return fmt.Errorf("update variant counters: %w", err)
		}

		res.ProductID = variant.ProductID
		if res.Status == "" {
			res.Status = models.ReservationActive
		}
		return translateError(tx.Create(res).Error)
	})
}

func (r *GormReservationRepository) Release(ctx context.Context, id uuid.UUID, at time.Time) (*models.Reservation, bool, error) {
	return r.settle(ctx, id, func(res *models.Reservation) bool { return res.IsActive() },
		models.ReservationReleased, at)
}

func (r *GormReservationRepository) ReleaseExpired(ctx context.Context, id uuid.UUID, now time.Time) (*models.Reservation, bool, error) {
	return r.settle(ctx, id, func(res *models.Reservation) bool { return res.Expired(now) },
		models.ReservationReleased, now)
}

func (r *GormReservationRepository) Consume(ctx context.Context, id uuid.UUID, at time.Time) (*models.Reservation, bool, error) {
	return r.settle(ctx, id, func(res *models.Reservation) bool { return res.IsActive() },
		models.ReservationConsumed, at)
}

// settle moves a reservation out of ACTIVE when eligible holds under the
// reservation row lock. Releases return units to stock; consumption only
// drops them from the reserved counter.
func (r *GormReservationRepository) settle(
	ctx context.Context,
	id uuid.UUID,
	eligible func(*models.Reservation) bool,
	to models.ReservationStatus,
	at time.Time,
) (*models.Reservation, bool, error) {
	var res models.Reservation
	changed := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&res, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if !eligible(&res) {
			return nil
		}

		counters := map[string]interface{}{
			"reserved_qty": gorm.Expr("reserved_qty - ?", res.Quantity),
			"updated_at":   at,
		}
		if to == models.ReservationReleased {
			counters["stock_qty"] = gorm.Expr("stock_qty + ?", res.Quantity)
		}
		if err := tx.Model(&models.Variant{}).Where("id = ?", res.VariantID).Updates(counters).Error; err != nil {
			return fmt.Errorf("update variant counters: %w", err)
		}

		fields := map[string]interface{}{"status": to}
		if to == models.ReservationReleased {
			fields["released_at"] = at
			res.ReleasedAt = &at
		} else {
			fields["consumed_at"] = at
			res.ConsumedAt = &at
		}
		if err := tx.Model(&models.Reservation{}).Where("id = ?", res.ID).Updates(fields).Error; err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		res.Status = to
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &res, changed, nil
}

func (r *GormReservationRepository) Hold(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reservations []models.Reservation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			Find(&reservations).Error
		if err != nil {
			return err
		}
		for _, res := range reservations {
			if res.Status == models.ReservationReleased {
				return fmt.Errorf("%w: reservation %s", ErrReservationsLapsed, res.ID)
			}
		}
		return tx.Model(&models.Reservation{}).
			Where("order_id = ? AND status = ?", orderID, models.ReservationActive).
			Update("expires_at", nil).Error
	})
}

func (r *GormReservationRepository) RestoreExpiry(ctx context.Context, orderID uuid.UUID, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("order_id = ? AND status = ? AND expires_at IS NULL", orderID, models.ReservationActive).
		Update("expires_at", expiresAt).Error
}

func (r *GormReservationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	if err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &res, nil
}

func (r *GormReservationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&reservations).Error
	return reservations, err
}

func (r *GormReservationRepository) FindExpired(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	reservations := []models.Reservation{}
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.ReservationActive, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&reservations).Error
	return reservations, err
}
