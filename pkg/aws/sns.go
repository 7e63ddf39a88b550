package aws

import (
	"context"
	"fmt"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSMessage is one notification. GroupID and DedupID only apply to FIFO
// topics; Attributes become String message attributes usable in
// subscription filter policies.
type SNSMessage struct {
	Body       []byte
	GroupID    string
	DedupID    string
	Attributes map[string]string
}

// SNSPublisher is a minimal interface for publishing messages to SNS.
type SNSPublisher interface {
	Publish(ctx context.Context, topicArn string, msg SNSMessage) error
}

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(cfg sdkaws.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

func (s *SNSClient) Publish(ctx context.Context, topicArn string, msg SNSMessage) error {
	if topicArn == "" {
		return fmt.Errorf("empty topicArn")
	}
	if _, err := s.client.Publish(ctx, buildPublishInput(topicArn, msg)); err != nil {
		return fmt.Errorf("sns publish failed for topic %s: %w", topicArn, err)
	}
	return nil
}

func buildPublishInput(topicArn string, msg SNSMessage) *sns.PublishInput {
	input := &sns.PublishInput{
		TopicArn: sdkaws.String(topicArn),
		Message:  sdkaws.String(string(msg.Body)),
	}

	if len(msg.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(msg.Attributes))
		for name, value := range msg.Attributes {
			if value == "" {
				continue
			}
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(value),
			}
		}
	}

	if strings.HasSuffix(topicArn, ".fifo") {
		if msg.GroupID != "" {
			input.MessageGroupId = sdkaws.String(msg.GroupID)
		}
		if msg.DedupID != "" {
			input.MessageDeduplicationId = sdkaws.String(msg.DedupID)
		}
	}
	return input
}
