package app

import "time"

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Хранилища ключей идемпотентности.
const (
	IdempotencyStoreStorage = "storage"
	IdempotencyStoreRedis   = "redis"
)

// Публикаторы outbox.
const (
	OutboxPublisherNone  = "none"
	OutboxPublisherKafka = "kafka"
	OutboxPublisherSNS   = "sns"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// IdempotencyStore=storage хранит ключи рядом с данными (memory или PostgreSQL).
	IdempotencyStore string
	RedisURL         string
	IdempotencyTTL   time.Duration

	OutboxPublisher    string
	KafkaBrokers       string
	KafkaClientID      string
	KafkaTopic         string
	KafkaDLQTopic      string
	SNSTopicARN        string
	SNSRegion          string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPending: размер очереди, после которого /healthz сообщает degraded.
	OutboxMaxPending int

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// CheckoutRate: оформлений в секунду на пользователя; 0 отключает ограничение.
	CheckoutRate  float64
	CheckoutBurst int
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		IdempotencyStore:            IdempotencyStoreStorage,
		IdempotencyTTL:              24 * time.Hour,
		OutboxPublisher:             OutboxPublisherNone,
		KafkaClientID:               "storefront",
		SNSRegion:                   "us-east-1",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxPending:            1000,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
		CheckoutRate:                2,
		CheckoutBurst:               5,
	}
}
