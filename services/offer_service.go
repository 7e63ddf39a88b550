package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-service/models"
	"storefront-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LiveOffersLimit caps the public offers listing.
const LiveOffersLimit = 3

// OfferService manages promotions and prices coupon codes.
type OfferService interface {
	ListLiveOffers(ctx context.Context) ([]models.Offer, *ServiceError)
	ListOffers(ctx context.Context) ([]models.Offer, *ServiceError)
	CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, *ServiceError)
	SetOfferActive(ctx context.Context, id string, active bool) (*models.Offer, *ServiceError)
	// ValidateOffer prices a code against a subtotal without using it up.
	ValidateOffer(ctx context.Context, req *models.ValidateOfferRequest) (*models.ValidateOfferResponse, *ServiceError)
	CouponRedeemer
}

// CouponRedeemer is the checkout side of offers.
type CouponRedeemer interface {
	// RedeemOffer checks code against subtotal and counts one use. field
	// names the request field in validation errors.
	RedeemOffer(ctx context.Context, code string, subtotal decimal.Decimal, field string) (*models.Offer, decimal.Decimal, *ServiceError)
	// ReleaseOffer gives back a use counted by RedeemOffer.
	ReleaseOffer(ctx context.Context, offerID uuid.UUID)
}

type offerServiceImpl struct {
	repo      repository.OfferRepository
	metrics   MetricsRecorder
	validator *requestValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewOfferService creates a new OfferService. metrics may be nil.
func NewOfferService(repo repository.OfferRepository, metrics MetricsRecorder, logger *zap.Logger) OfferService {
	return &offerServiceImpl{
		repo:      repo,
		metrics:   metrics,
		validator: newRequestValidator(),
		logger:    logger,
		now:       time.Now,
	}
}

func (s *offerServiceImpl) ListLiveOffers(ctx context.Context) ([]models.Offer, *ServiceError) {
	offers, err := s.repo.FindLive(ctx, s.now(), LiveOffersLimit)
	if err != nil {
		s.logger.Error("Failed to list live offers", zap.Error(err))
		return nil, NewInternalError("Failed to fetch offers")
	}
	return offers, nil
}

func (s *offerServiceImpl) ListOffers(ctx context.Context) ([]models.Offer, *ServiceError) {
	offers, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list offers", zap.Error(err))
		return nil, NewInternalError("Failed to fetch offers")
	}
	return offers, nil
}

func (s *offerServiceImpl) CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, *ServiceError) {
	req.Title = strings.TrimSpace(req.Title)
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if svcErr := s.validator.check(req); svcErr != nil {
		return nil, svcErr
	}
	if !req.DiscountValue.IsPositive() {
		return nil, NewInvalidFieldError("discount_value", "discount_value must be greater than 0")
	}
	if req.DiscountType == models.DiscountPercentage && req.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return nil, NewInvalidFieldError("discount_value", "Percentage discount cannot exceed 100")
	}
	if req.MinOrderValue != nil && req.MinOrderValue.IsNegative() {
		return nil, NewInvalidFieldError("min_order_value", "min_order_value must not be negative")
	}
	if req.MaxDiscount != nil && !req.MaxDiscount.IsPositive() {
		return nil, NewInvalidFieldError("max_discount", "max_discount must be greater than 0")
	}

	offer := &models.Offer{
		ID:            uuid.New(),
		Title:         req.Title,
		Description:   req.Description,
		Code:          req.Code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		UsageLimit:    req.UsageLimit,
		ValidFrom:     s.now(),
		ValidTill:     req.ValidTill,
		Active:        true,
	}
	if req.ValidFrom != nil {
		offer.ValidFrom = *req.ValidFrom
	}
	if offer.ValidTill != nil && offer.ValidTill.Before(offer.ValidFrom) {
		return nil, NewInvalidFieldError("valid_till", "valid_till must not be before valid_from")
	}
	if req.MinOrderValue != nil {
		offer.MinOrderValue = decimal.NewNullDecimal(*req.MinOrderValue)
	}
	if req.MaxDiscount != nil {
		offer.MaxDiscount = decimal.NewNullDecimal(*req.MaxDiscount)
	}
	if req.Active != nil {
		offer.Active = *req.Active
	}

	if err := s.repo.Create(ctx, offer); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, NewConflictError("Coupon code already exists")
		}
		s.logger.Error("Failed to create offer", zap.String("code", offer.Code), zap.Error(err))
		return nil, NewInternalError("Failed to create offer")
	}

	s.logger.Info("Offer created", zap.String("code", offer.Code), zap.String("type", string(offer.DiscountType)))
	return offer, nil
}

func (s *offerServiceImpl) SetOfferActive(ctx context.Context, id string, active bool) (*models.Offer, *ServiceError) {
	offerID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, NewNotFoundError("Offer not found")
	}
	if err := s.repo.SetActive(ctx, offerID, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewNotFoundError("Offer not found")
		}
		s.logger.Error("Failed to update offer", zap.String("offer_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to update offer")
	}
	offer, err := s.repo.FindByID(ctx, offerID)
	if err != nil {
		s.logger.Error("Failed to reload offer", zap.String("offer_id", id), zap.Error(err))
		return nil, NewInternalError("Failed to update offer")
	}
	s.logger.Info("Offer updated", zap.String("code", offer.Code), zap.Bool("active", active))
	return offer, nil
}

func (s *offerServiceImpl) ValidateOffer(ctx context.Context, req *models.ValidateOfferRequest) (*models.ValidateOfferResponse, *ServiceError) {
	offer, discount, svcErr := s.price(ctx, req.Code, req.Subtotal, "code")
	if svcErr != nil {
		return nil, svcErr
	}
	return &models.ValidateOfferResponse{
		Valid: true,
		Offer: models.OfferSummary{
			ID:            offer.ID,
			Title:         offer.Title,
			Description:   offer.Description,
			Code:          offer.Code,
			DiscountType:  offer.DiscountType,
			DiscountValue: offer.DiscountValue,
		},
		Discount: models.AppliedDiscount{
			Amount: discount,
			Type:   offer.DiscountType,
			Value:  offer.DiscountValue,
		},
		Subtotal:   req.Subtotal,
		FinalTotal: req.Subtotal.Sub(discount),
	}, nil
}

func (s *offerServiceImpl) RedeemOffer(ctx context.Context, code string, subtotal decimal.Decimal, field string) (*models.Offer, decimal.Decimal, *ServiceError) {
	offer, discount, svcErr := s.price(ctx, code, subtotal, field)
	if svcErr != nil {
		return nil, decimal.Zero, svcErr
	}
	if err := s.repo.Redeem(ctx, offer.ID); err != nil {
		if errors.Is(err, repository.ErrOfferExhausted) {
			return nil, decimal.Zero, NewInvalidFieldError(field, "Coupon usage limit reached")
		}
		s.logger.Error("Failed to redeem offer", zap.String("code", offer.Code), zap.Error(err))
		return nil, decimal.Zero, NewInternalError("Failed to apply coupon")
	}
	recordCount(s.metrics, s.logger, MetricCouponsRedeemed, map[string]string{"Type": string(offer.DiscountType)})
	return offer, discount, nil
}

func (s *offerServiceImpl) ReleaseOffer(ctx context.Context, offerID uuid.UUID) {
	if err := s.repo.Unredeem(context.WithoutCancel(ctx), offerID); err != nil {
		s.logger.Error("Failed to release offer redemption", zap.String("offer_id", offerID.String()), zap.Error(err))
	}
}

// price resolves code and computes its discount on subtotal. Unknown,
// inactive and not-yet-started codes are all reported as not found.
func (s *offerServiceImpl) price(ctx context.Context, code string, subtotal decimal.Decimal, field string) (*models.Offer, decimal.Decimal, *ServiceError) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, decimal.Zero, NewMissingFieldError(field)
	}
	if !subtotal.IsPositive() {
		return nil, decimal.Zero, NewInvalidFieldError("subtotal", "Valid subtotal is required")
	}

	offer, err := s.repo.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to look up offer", zap.String("code", code), zap.Error(err))
		return nil, decimal.Zero, NewInternalError("Failed to validate coupon")
	}
	now := s.now()
	if err != nil || !offer.Active || !offer.Started(now) {
		return nil, decimal.Zero, NewNotFoundError("Invalid or expired coupon code")
	}
	if offer.Expired(now) {
		return nil, decimal.Zero, NewInvalidFieldError(field, "This coupon has expired")
	}
	if offer.Exhausted() {
		return nil, decimal.Zero, NewInvalidFieldError(field, "Coupon usage limit reached")
	}
	if offer.MinOrderValue.Valid && subtotal.LessThan(offer.MinOrderValue.Decimal) {
		return nil, decimal.Zero, NewInvalidFieldError(field,
			fmt.Sprintf("Minimum order value of %s required", offer.MinOrderValue.Decimal.StringFixed(2)))
	}
	return offer, offer.Discount(subtotal), nil
}
