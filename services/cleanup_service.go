package services

import (
	"context"
	"time"

	"storefront-service/models"
	"storefront-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const stalePendingBatch = 200

// CleanupService runs the periodic reservation sweep.
type CleanupService interface {
	RunCleanup(ctx context.Context) (*models.CleanupResult, *ServiceError)
}

type cleanupServiceImpl struct {
	reservations  ReservationService
	orders        OrderService
	orderRepo     repository.OrderRepository
	cancelExpired bool
	now           func() time.Time
	logger        *zap.Logger
}

// NewCleanupService creates a CleanupService. With cancelExpired, PENDING
// orders left without any active reservation are cancelled.
func NewCleanupService(
	reservations ReservationService,
	orders OrderService,
	orderRepo repository.OrderRepository,
	cancelExpired bool,
	logger *zap.Logger,
) CleanupService {
	return &cleanupServiceImpl{
		reservations:  reservations,
		orders:        orders,
		orderRepo:     orderRepo,
		cancelExpired: cancelExpired,
		now:           time.Now,
		logger:        logger,
	}
}

func (s *cleanupServiceImpl) RunCleanup(ctx context.Context) (*models.CleanupResult, *ServiceError) {
	now := s.now()
	sweep, svcErr := s.reservations.SweepExpired(ctx, now)
	if svcErr != nil {
		return nil, svcErr
	}

	result := &models.CleanupResult{ReservationsReleased: sweep.Released, Timestamp: now}
	if !s.cancelExpired {
		return result, nil
	}

	candidates := append([]uuid.UUID{}, sweep.OrderIDs...)
	stale, err := s.orderRepo.FindStalePending(ctx, now, stalePendingBatch)
	if err != nil {
		s.logger.Error("Failed to load stale pending orders", zap.Error(err))
		return nil, NewInternalError("Failed to clean up orders")
	}
	seen := make(map[uuid.UUID]bool, len(candidates))
	for _, id := range candidates {
		seen[id] = true
	}
	for _, o := range stale {
		if !seen[o.ID] {
			seen[o.ID] = true
			candidates = append(candidates, o.ID)
		}
	}

	for _, orderID := range candidates {
		if s.cancelIfAbandoned(ctx, orderID) {
			result.OrdersCancelled++
		}
	}

	s.logger.Info("Reservation cleanup finished",
		zap.Int("reservations_released", result.ReservationsReleased),
		zap.Int("orders_cancelled", result.OrdersCancelled))
	return result, nil
}

// cancelIfAbandoned cancels a PENDING order whose reservations have all
// lapsed. Orders that moved on in the meantime are skipped.
func (s *cleanupServiceImpl) cancelIfAbandoned(ctx context.Context, orderID uuid.UUID) bool {
	order, svcErr := s.orders.GetOrder(ctx, orderID.String())
	if svcErr != nil || order.Status != models.OrderStatusPending {
		return false
	}
	if order.ReservedUntil != nil && order.ReservedUntil.After(s.now()) {
		return false
	}

	change, svcErr := s.orders.UpdateStatus(ctx, StatusUpdate{
		OrderID:        orderID.String(),
		NewStatus:      string(models.OrderStatusCancelled),
		ExpectedStatus: string(models.OrderStatusPending),
	})
	if svcErr != nil {
		s.logger.Warn("Failed to cancel expired order",
			zap.String("order_id", orderID.String()),
			zap.String("error", svcErr.Message))
		return false
	}
	return change.Applied
}

// StartCleanupScheduler runs RunCleanup every interval until ctx is done.
func StartCleanupScheduler(ctx context.Context, svc CleanupService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		return
	}
	logger.Info("Reservation cleanup scheduler started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Reservation cleanup scheduler stopped")
			return
		case <-ticker.C:
			if _, svcErr := svc.RunCleanup(ctx); svcErr != nil {
				logger.Error("Scheduled reservation cleanup failed", zap.String("error", svcErr.Message))
			}
		}
	}
}
