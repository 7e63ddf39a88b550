package services

import (
	"context"
	"strings"

	"storefront-service/models"

	"go.uber.org/zap"
)

// WebhookService applies status changes reported by external systems.
type WebhookService interface {
	HandleStatusWebhook(ctx context.Context, req *models.StatusWebhookRequest) (*models.StatusWebhookResponse, *ServiceError)
}

type webhookServiceImpl struct {
	orders  OrderService
	metrics MetricsRecorder
	logger  *zap.Logger
}

func NewWebhookService(orders OrderService, metrics MetricsRecorder, logger *zap.Logger) WebhookService {
	return &webhookServiceImpl{orders: orders, metrics: metrics, logger: logger}
}

// HandleStatusWebhook validates the payload and drives the order through the
// lifecycle. A stale old_status yields a conflict.
func (s *webhookServiceImpl) HandleStatusWebhook(ctx context.Context, req *models.StatusWebhookRequest) (*models.StatusWebhookResponse, *ServiceError) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.NewStatus = strings.TrimSpace(req.NewStatus)
	req.OldStatus = strings.TrimSpace(req.OldStatus)

	if req.OrderID == "" {
		return nil, NewMissingFieldError("order_id")
	}
	if req.NewStatus == "" {
		return nil, NewMissingFieldError("new_status")
	}

	change, svcErr := s.orders.UpdateStatus(ctx, StatusUpdate{
		OrderID:        req.OrderID,
		NewStatus:      req.NewStatus,
		ExpectedStatus: req.OldStatus,
	})
	if svcErr != nil {
		if svcErr.Field == "status" {
			svcErr.Field = "new_status"
		}
		s.logger.Warn("Status webhook rejected",
			zap.String("order_id", req.OrderID),
			zap.String("new_status", req.NewStatus),
			zap.String("kind", string(svcErr.Kind)),
			zap.String("error", svcErr.Message))
		return nil, svcErr
	}

	s.logger.Info("Status webhook processed",
		zap.String("order_id", req.OrderID),
		zap.String("order_number", change.Order.OrderNumber),
		zap.String("customer_phone", change.Order.CustomerPhone),
		zap.String("new_status", string(change.NewStatus)),
		zap.Bool("applied", change.Applied))
	recordCount(s.metrics, s.logger, MetricStatusWebhooks, map[string]string{"Status": string(change.NewStatus)})

	return &models.StatusWebhookResponse{
		OrderID:       change.Order.ID.String(),
		OrderNumber:   change.Order.OrderNumber,
		CustomerPhone: change.Order.CustomerPhone,
		OldStatus:     change.OldStatus,
		NewStatus:     change.NewStatus,
		Applied:       change.Applied,
	}, nil
}
