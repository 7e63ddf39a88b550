package services

import (
	"context"
	"encoding/json"
	"errors"

	"storefront-service/models"
	aws_pkg "storefront-service/pkg/aws"

	"go.uber.org/zap"
)

// MessagePoller is satisfied by aws_pkg.SQSConsumer.
type MessagePoller interface {
	StartPolling(ctx context.Context, handler aws_pkg.MessageHandler) error
}

// SQSStatusConsumer feeds order status events from a queue (optionally
// wrapped in an SNS envelope) into the webhook notifier.
type SQSStatusConsumer struct {
	poller  MessagePoller
	webhook WebhookService
	logger  *zap.Logger
}

func NewSQSStatusConsumer(poller MessagePoller, webhook WebhookService, logger *zap.Logger) *SQSStatusConsumer {
	return &SQSStatusConsumer{poller: poller, webhook: webhook, logger: logger}
}

// Start blocks polling until ctx is cancelled.
func (c *SQSStatusConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting order status queue consumer")
	err := c.poller.StartPolling(ctx, c.HandleMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("Order status queue polling stopped", zap.Error(err))
	}
}

// HandleMessage returns an error only for failures worth redelivering.
// Malformed or rejected events are logged and acknowledged.
func (c *SQSStatusConsumer) HandleMessage(ctx context.Context, body string) error {
	var envelope struct {
		Message string `json:"Message"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err == nil && envelope.Message != "" {
		body = envelope.Message
	}

	var req models.StatusWebhookRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		c.logger.Warn("Dropping invalid order status message", zap.Error(err))
		return nil
	}

	if _, svcErr := c.webhook.HandleStatusWebhook(ctx, &req); svcErr != nil {
		if svcErr.Kind == KindInternal {
			return svcErr
		}
		c.logger.Warn("Dropping rejected order status message",
			zap.String("order_id", req.OrderID),
			zap.String("kind", string(svcErr.Kind)),
			zap.String("error", svcErr.Message))
	}
	return nil
}
