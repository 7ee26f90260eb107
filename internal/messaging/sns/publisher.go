// Package sns публикует события outbox в топик AWS SNS.
package sns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging"
)

const (
	attrEventType     = "event_type"
	attrAggregateType = "aggregate_type"
)

// API: часть клиента SNS, которая нужна паблишеру.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher реализует domain.OutboxPublisher поверх SNS.
// Для FIFO-топика события одного заказа попадают в одну группу сообщений.
type Publisher struct {
	client   API
	topicARN string
	fifo     bool
	logger   *log.Entry
}

// New создаёт паблишер с клиентом из стандартной цепочки AWS-конфигурации.
func New(ctx context.Context, topicARN, region string) (*Publisher, error) {
	if strings.TrimSpace(topicARN) == "" {
		return nil, errors.New("sns topic arn is required")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(sns.NewFromConfig(cfg), topicARN), nil
}

// NewWithClient создаёт паблишер с готовым клиентом.
func NewWithClient(client API, topicARN string) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		fifo:     strings.HasSuffix(topicARN, ".fifo"),
		logger:   log.WithField("component", "sns-publisher"),
	}
}

// Publish отправляет конверт события в топик.
func (p *Publisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.client == nil {
		return errors.New("sns outbox publisher is not initialized")
	}

	envelope := messaging.NewEnvelope(event, time.Now())
	body, err := envelope.Marshal()
	if err != nil {
		return err
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			attrEventType: {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.EventType),
			},
			attrAggregateType: {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.AggregateType),
			},
		},
	}
	if p.fifo {
		input.MessageGroupId = aws.String(envelope.PartitionKey())
		input.MessageDeduplicationId = aws.String(event.ID)
	}

	out, err := p.client.Publish(ctx, input)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"outbox_id":  event.ID,
			"event_type": event.EventType,
		}).Error("failed to publish message to sns")
		return fmt.Errorf("publish to sns: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"outbox_id":  event.ID,
		"message_id": aws.ToString(out.MessageId),
	}).Debug("message sent to sns")
	return nil
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
