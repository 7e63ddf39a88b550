package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront-service/models"
	aws_pkg "storefront-service/pkg/aws"
)

// EventPublisher delivers order events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
}

// SNSEventPublisher publishes order events as JSON to one SNS topic.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return p.client.Publish(ctx, p.topicArn, aws_pkg.SNSMessage{
		Body: data,
		// Per-order ordering on FIFO topics.
		GroupID: evt.OrderID,
		DedupID: fmt.Sprintf("%s:%s:%s", evt.OrderID, evt.Type, evt.NewStatus),
		Attributes: map[string]string{
			"event_type": evt.Type,
			"new_status": string(evt.NewStatus),
		},
	})
}

// FanoutPublisher publishes to every sink and joins their errors.
type FanoutPublisher []EventPublisher

func (f FanoutPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	var errs error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = errors.Join(errs, fmt.Errorf("%T: %w", p, err))
		}
	}
	return errs
}
