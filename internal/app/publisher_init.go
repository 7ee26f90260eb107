package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/sns"
)

// outboxPublishers: основной паблишер и, если есть, паблишер DLQ.
type outboxPublishers struct {
	main    domain.OutboxPublisher
	dlq     domain.OutboxPublisher
	closeFn func() error
}

// initKafkaProducer создаёт producer, если список brokers не пуст.
// Пустой список не считается ошибкой: возвращается nil, nil.
func initKafkaProducer(brokers, clientID string, logger *log.Entry) (*kafka.Producer, error) {
	brokerList := splitBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokerList, clientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer")
		return nil, err
	}

	logger.WithField("brokers", brokerList).Info("kafka producer initialized")
	return producer, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// closeKafkaProducer закрывает producer, если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// initOutboxPublishers выбирает транспорт событий outbox. Режим none оставляет
// события в очереди: outbox worker не запускается.
func initOutboxPublishers(ctx context.Context, cfg Config, logger *log.Entry) (outboxPublishers, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.OutboxPublisher)) {
	case "", OutboxPublisherNone:
		logger.Warn("outbox publisher is disabled, events stay pending")
		return outboxPublishers{}, nil
	case OutboxPublisherKafka:
		producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger)
		if err != nil {
			return outboxPublishers{}, err
		}
		if producer == nil {
			return outboxPublishers{}, fmt.Errorf("kafka brokers are required for kafka outbox publisher")
		}
		dlqTopic := cfg.KafkaDLQTopic
		if dlqTopic == "" {
			dlqTopic = kafka.TopicDeadLetterQueue
		}
		return outboxPublishers{
			main: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			dlq:  kafka.NewOutboxPublisher(producer, dlqTopic),
			closeFn: func() error {
				closeKafkaProducer(producer, logger)
				return nil
			},
		}, nil
	case OutboxPublisherSNS:
		publisher, err := sns.New(ctx, cfg.SNSTopicARN, cfg.SNSRegion)
		if err != nil {
			return outboxPublishers{}, err
		}
		logger.WithField("topic_arn", cfg.SNSTopicARN).Info("sns outbox publisher initialized")
		return outboxPublishers{main: publisher}, nil
	default:
		return outboxPublishers{}, fmt.Errorf("unsupported outbox publisher %q", cfg.OutboxPublisher)
	}
}
