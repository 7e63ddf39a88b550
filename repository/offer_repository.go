package repository

import (
	"context"
	"strings"
	"time"

	"storefront-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OfferRepository defines offer persistence. Codes are matched
// case-insensitively.
type OfferRepository interface {
	Create(ctx context.Context, offer *models.Offer) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	FindByCode(ctx context.Context, code string) (*models.Offer, error)
	// FindLive returns active offers inside their validity window at now,
	// newest first.
	FindLive(ctx context.Context, now time.Time, limit int) ([]models.Offer, error)
	FindAll(ctx context.Context) ([]models.Offer, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// Redeem counts one use of the offer, failing with ErrOfferExhausted
	// once its usage limit is reached.
	Redeem(ctx context.Context, id uuid.UUID) error
	Unredeem(ctx context.Context, id uuid.UUID) error
}

type GormOfferRepository struct {
	db *gorm.DB
}

func NewGormOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

func (r *GormOfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	return translateError(r.db.WithContext(ctx).Create(offer).Error)
}

func (r *GormOfferRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := r.db.WithContext(ctx).First(&offer, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &offer, nil
}

func (r *GormOfferRepository) FindByCode(ctx context.Context, code string) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&offer).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &offer, nil
}

func (r *GormOfferRepository) FindLive(ctx context.Context, now time.Time, limit int) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := r.db.WithContext(ctx).
		Where("active = ? AND valid_from <= ? AND (valid_till IS NULL OR valid_till >= ?)", true, now, now).
		Order("created_at DESC").
		Limit(limit).
		Find(&offers).Error
	return offers, err
}

func (r *GormOfferRepository) FindAll(ctx context.Context) ([]models.Offer, error) {
	offers := []models.Offer{}
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&offers).Error
	return offers, err
}

func (r *GormOfferRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormOfferRepository) Redeem(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", id).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOfferExhausted
	}
	return nil
}

func (r *GormOfferRepository) Unredeem(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("id = ? AND used_count > 0", id).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).Error
}
