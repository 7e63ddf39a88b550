package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/models"
	"storefront-service/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultReservationTTL = 15 * time.Minute
	sweepBatchSize        = 100
)

type ReserveRequest struct {
	OrderID   uuid.UUID
	VariantID uuid.UUID
	Quantity  int
	// TTL <= 0 selects the manager default.
	TTL time.Duration
}

type SweepResult struct {
	Released int
	// OrderIDs lists orders that lost at least one reservation.
	OrderIDs []uuid.UUID
}

// ReservationService holds and returns variant stock. All operations on one
// variant are serialised, so concurrent reservations can never drive stock
// below zero and a reservation is released at most once.
type ReservationService interface {
	Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, *ServiceError)
	Release(ctx context.Context, reservationID uuid.UUID) *ServiceError
	ReleaseOrder(ctx context.Context, orderID uuid.UUID) (int, *ServiceError)
	ConsumeOrder(ctx context.Context, orderID uuid.UUID) (int, *ServiceError)
	HoldOrder(ctx context.Context, orderID uuid.UUID) *ServiceError
	UnholdOrder(ctx context.Context, orderID uuid.UUID, expiresAt time.Time) *ServiceError
	SweepExpired(ctx context.Context, now time.Time) (*SweepResult, *ServiceError)
}

type reservationServiceImpl struct {
	repo       repository.ReservationRepository
	cache      CatalogCache
	metrics    MetricsRecorder
	logger     *zap.Logger
	defaultTTL time.Duration
	locks      *keyedMutex
}

// NewReservationService creates a ReservationService. cache and metrics may be nil.
func NewReservationService(
	repo repository.ReservationRepository,
	cache CatalogCache,
	metrics MetricsRecorder,
	defaultTTL time.Duration,
	logger *zap.Logger,
) ReservationService {
	if cache == nil {
		cache = noopCatalogCache{}
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultReservationTTL
	}
	return &reservationServiceImpl{
		repo:       repo,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		defaultTTL: defaultTTL,
		locks:      newKeyedMutex(),
	}
}

func (s *reservationServiceImpl) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, *ServiceError) {
	if req.Quantity <= 0 {
		return nil, NewInvalidFieldError("quantity", "Quantity must be greater than zero")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	ctx, span := tracer.Start(ctx, "ReservationService.Reserve", trace.WithAttributes(
		attribute.String("variant_id", req.VariantID.String()),
		attribute.String("order_id", req.OrderID.String()),
		attribute.Int("quantity", req.Quantity),
	))
	defer span.End()

	unlock := s.locks.Lock(req.VariantID.String())
	defer unlock()

	expiresAt := time.Now().Add(ttl)
	res := &models.Reservation{
		ID:        uuid.New(),
		OrderID:   req.OrderID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Status:    models.ReservationActive,
		ExpiresAt: &expiresAt,
	}

	if err := s.repo.Reserve(ctx, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientStock):
			recordCount(s.metrics, s.logger, MetricInventoryOutOfStock, nil)
			return nil, NewInsufficientStockError(fmt.Sprintf("Insufficient stock for variant %s", req.VariantID))
		case errors.Is(err, repository.ErrNotFound):
			return nil, NewNotFoundError(fmt.Sprintf("Variant %s not found", req.VariantID))
		}
		span.RecordError(err)
		s.logger.Error("Failed to reserve stock",
			zap.String("variant_id", req.VariantID.String()),
			zap.String("order_id", req.OrderID.String()),
			zap.Error(err))
		return nil, NewInternalError("Failed to reserve stock")
	}

	s.logger.Info("Stock reserved",
		zap.String("reservation_id", res.ID.String()),
		zap.String("variant_id", res.VariantID.String()),
		zap.String("order_id", res.OrderID.String()),
		zap.Int("quantity", res.Quantity),
		zap.Time("expires_at", expiresAt))
	recordCount(s.metrics, s.logger, MetricInventoryReserved, nil)
	s.cache.InvalidateProduct(ctx, res.ProductID)
	return res, nil
}

// Release is idempotent: releasing an inactive reservation is a no-op.
func (s *reservationServiceImpl) Release(ctx context.Context, reservationID uuid.UUID) *ServiceError {
	ctx, span := tracer.Start(ctx, "ReservationService.Release", trace.WithAttributes(
		attribute.String("reservation_id", reservationID.String()),
	))
	defer span.End()

	res, err := s.repo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return NewNotFoundError(fmt.Sprintf("Reservation %s not found", reservationID))
		}
		s.logger.Error("Failed to load reservation", zap.String("reservation_id", reservationID.String()), zap.Error(err))
		return NewInternalError("Failed to release reservation")
	}

	if _, svcErr := s.settle(ctx, *res, s.repo.Release); svcErr != nil {
		return svcErr
	}
	return nil
}

func (s *reservationServiceImpl) ReleaseOrder(ctx context.Context, orderID uuid.UUID) (int, *ServiceError) {
	ctx, span := tracer.Start(ctx, "ReservationService.ReleaseOrder", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()
	return s.settleOrder(ctx, orderID, s.repo.Release)
}

func (s *reservationServiceImpl) ConsumeOrder(ctx context.Context, orderID uuid.UUID) (int, *ServiceError) {
	ctx, span := tracer.Start(ctx, "ReservationService.ConsumeOrder", trace.WithAttributes(
		attribute.String("order_id", orderID.String()),
	))
	defer span.End()
	return s.settleOrder(ctx, orderID, s.repo.Consume)
}

// HoldOrder stops the order's reservations from expiring. It fails with a
// conflict, leaving every expiry untouched, when a reservation has already
// been released.
func (s *reservationServiceImpl) HoldOrder(ctx context.Context, orderID uuid.UUID) *ServiceError {
	if err := s.repo.Hold(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrReservationsLapsed) {
			return NewConflictError("Order reservations have expired")
		}
		s.logger.Error("Failed to hold reservations", zap.String("order_id", orderID.String()), zap.Error(err))
		return NewInternalError("Failed to hold reservations")
	}
	return nil
}

// UnholdOrder gives held reservations back their expiry.
func (s *reservationServiceImpl) UnholdOrder(ctx context.Context, orderID uuid.UUID, expiresAt time.Time) *ServiceError {
	if err := s.repo.RestoreExpiry(ctx, orderID, expiresAt); err != nil {
		s.logger.Error("Failed to restore reservation expiry", zap.String("order_id", orderID.String()), zap.Error(err))
		return NewInternalError("Failed to restore reservations")
	}
	return nil
}

// SweepExpired releases every active reservation whose expiry is at or
// before now.
func (s *reservationServiceImpl) SweepExpired(ctx context.Context, now time.Time) (*SweepResult, *ServiceError) {
	ctx, span := tracer.Start(ctx, "ReservationService.SweepExpired")
	defer span.End()

	result := &SweepResult{OrderIDs: []uuid.UUID{}}
	seen := make(map[uuid.UUID]bool)
	for {
		batch, err := s.repo.FindExpired(ctx, now, sweepBatchSize)
		if err != nil {
			span.RecordError(err)
			s.logger.Error("Failed to load expired reservations", zap.Error(err))
			return nil, NewInternalError("Failed to sweep reservations")
		}

		releasedInBatch := 0
		for _, candidate := range batch {
			released, svcErr := s.settle(ctx, candidate, func(ctx context.Context, id uuid.UUID, _ time.Time) (*models.Reservation, bool, error) {
				return s.repo.ReleaseExpired(ctx, id, now)
			})
			if svcErr != nil {
				continue
			}
			if released {
				releasedInBatch++
				if !seen[candidate.OrderID] {
					seen[candidate.OrderID] = true
					result.OrderIDs = append(result.OrderIDs, candidate.OrderID)
				}
			}
		}
		result.Released += releasedInBatch

		if len(batch) < sweepBatchSize || releasedInBatch == 0 {
			break
		}
	}

	if result.Released > 0 {
		s.logger.Info("Expired reservations released",
			zap.Int("count", result.Released),
			zap.Int("orders", len(result.OrderIDs)))
		recordCount(s.metrics, s.logger, MetricReservationsExpired, nil)
	}
	return result, nil
}

type settleFunc func(ctx context.Context, id uuid.UUID, at time.Time) (*models.Reservation, bool, error)

func (s *reservationServiceImpl) settleOrder(ctx context.Context, orderID uuid.UUID, fn settleFunc) (int, *ServiceError) {
	reservations, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load order reservations", zap.String("order_id", orderID.String()), zap.Error(err))
		return 0, NewInternalError("Failed to update reservations")
	}

	count := 0
	for _, res := range reservations {
		if !res.IsActive() {
			continue
		}
		changed, svcErr := s.settle(ctx, res, fn)
		if svcErr != nil {
			return count, svcErr
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// settle runs fn for one reservation under its variant lock.
func (s *reservationServiceImpl) settle(ctx context.Context, res models.Reservation, fn settleFunc) (bool, *ServiceError) {
	unlock := s.locks.Lock(res.VariantID.String())
	defer unlock()

	updated, changed, err := fn(ctx, res.ID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, NewNotFoundError(fmt.Sprintf("Reservation %s not found", res.ID))
		}
		s.logger.Error("Failed to settle reservation",
			zap.String("reservation_id", res.ID.String()),
			zap.String("variant_id", res.VariantID.String()),
			zap.Error(err))
		return false, NewInternalError("Failed to update reservation")
	}
	if !changed {
		return false, nil
	}

	metric := MetricInventoryReleased
	if updated.Status == models.ReservationConsumed {
		metric = MetricInventoryConsumed
	}
	s.logger.Info("Reservation settled",
		zap.String("reservation_id", updated.ID.String()),
		zap.String("order_id", updated.OrderID.String()),
		zap.String("status", string(updated.Status)),
		zap.Int("quantity", updated.Quantity))
	recordCount(s.metrics, s.logger, metric, nil)
	s.cache.InvalidateProduct(ctx, updated.ProductID)
	return true, nil
}
