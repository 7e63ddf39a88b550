package repository

import (
	"context"
	"fmt"
	"strings"

	"storefront-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines catalog persistence. Variants are always loaded
// with their product.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Find(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	Update(ctx context.Context, product *models.Product, replaceVariants bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return translateError(r.db.WithContext(ctx).Create(product).Error)
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", orderVariants).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &product, nil
}

// Find matches every non-empty filter field case-insensitively, newest first.
func (r *GormProductRepository) Find(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{})
	if filter.MainCategory != "" {
		query = query.Where("LOWER(main_category) = ?", strings.ToLower(filter.MainCategory))
	}
	if filter.Category != "" {
		query = query.Where("LOWER(category) = ?", strings.ToLower(filter.Category))
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}

	products := []models.Product{}
	err := query.Preload("Variants", orderVariants).
		Order("created_at DESC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// Update writes the scalar columns of product. With replaceVariants the
// existing variant rows are deleted and product.Variants inserted in their
// place; this is refused while any reservation on the product is active.
func (r *GormProductRepository) Update(ctx context.Context, product *models.Product, replaceVariants bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, product.ID); err != nil {
			return err
		}

		result := tx.Model(&models.Product{ID: product.ID}).
			Select("name", "slug", "description", "base_price", "main_category", "category", "active", "updated_at").
			Updates(product)
		if result.Error != nil {
			return translateError(result.Error)
		}

		if !replaceVariants {
			return nil
		}

		if err := ensureNoActiveReservations(tx, product.ID); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Variant{}).Error; err != nil {
			return fmt.Errorf("delete variants: %w", err)
		}
		if len(product.Variants) == 0 {
			return nil
		}
		for i := range product.Variants {
			product.Variants[i].ProductID = product.ID
		}
		return translateError(tx.Omit(clause.Associations).Create(&product.Variants).Error)
	})
}

// Delete removes the product and its variants.
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockProduct(tx, id); err != nil {
			return err
		}
		if err := ensureNoActiveReservations(tx, id); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Variant{}).Error; err != nil {
			return fmt.Errorf("delete variants: %w", err)
		}
		result := tx.Delete(&models.Product{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// lockProduct takes row locks on the product and all of its variants so that
// concurrent reservations finish before variants are rewritten.
func lockProduct(tx *gorm.DB, id uuid.UUID) error {
	var product models.Product
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
		return translateError(err)
	}
	var variantIDs []uuid.UUID
	return tx.Model(&models.Variant{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", id).
		Pluck("id", &variantIDs).Error
}

func ensureNoActiveReservations(tx *gorm.DB, productID uuid.UUID) error {
	var active int64
	err := tx.Model(&models.Reservation{}).
		Where("product_id = ? AND status = ?", productID, models.ReservationActive).
		Count(&active).Error
	if err != nil {
		return fmt.Errorf("count active reservations: %w", err)
	}
	if active > 0 {
		return ErrActiveReservations
	}
	return nil
}

func orderVariants(db *gorm.DB) *gorm.DB {
	return db.Order("variants.created_at ASC")
}
