package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

const (
	envGRPCAddr    = "SHOP_GRPC_ADDR"
	envMetricsAddr = "SHOP_METRICS_ADDR"

	envStorageDriver       = "SHOP_STORAGE_DRIVER"
	envPostgresDSN         = "SHOP_POSTGRES_DSN"
	envPostgresAutoMigrate = "SHOP_POSTGRES_AUTO_MIGRATE"

	envIdempotencyStore = "SHOP_IDEMPOTENCY_STORE"
	envRedisURL         = "SHOP_REDIS_URL"
	envIdempotencyTTL   = "SHOP_IDEMPOTENCY_TTL"

	envOutboxPublisher    = "SHOP_OUTBOX_PUBLISHER"
	envKafkaBrokers       = "KAFKA_BROKERS"
	envKafkaClientID      = "SHOP_KAFKA_CLIENT_ID"
	envKafkaTopic         = "SHOP_KAFKA_TOPIC"
	envKafkaDLQTopic      = "SHOP_KAFKA_DLQ_TOPIC"
	envSNSTopicARN        = "SHOP_SNS_TOPIC_ARN"
	envSNSRegion          = "SHOP_SNS_REGION"
	envOutboxPollInterval = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "SHOP_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending   = "SHOP_OUTBOX_MAX_PENDING"

	envIdempotencyCleanupInterval  = "SHOP_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "SHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envCheckoutRate  = "SHOP_CHECKOUT_RATE"
	envCheckoutBurst = "SHOP_CHECKOUT_BURST"

	envLogFormat = "SHOP_LOG_FORMAT"
	envLogLevel  = "SHOP_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	if format, ok := lookupTrimmed(lookup, envLogFormat); ok && strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level := log.InfoLevel
	if raw, ok := lookupTrimmed(lookup, envLogLevel); ok {
		if parsed, err := log.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не валят запуск: остаётся значение по умолчанию, а в
// warnings попадает описание проблемы.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v, using default", key, raw, err))
	}

	readString := func(key string, dst *string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*dst = v
		}
	}
	readLower := func(key string, dst *string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*dst = strings.ToLower(v)
		}
	}
	readBool := func(key string, dst *bool) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	readInt := func(key string, dst *int, valid func(int) bool, rule string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			parsed, err := parseInt(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	readDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	readString(envGRPCAddr, &cfg.GRPCAddr)
	readString(envMetricsAddr, &cfg.MetricsAddr)

	readLower(envStorageDriver, &cfg.StorageDriver)
	readString(envPostgresDSN, &cfg.PostgresDSN)
	readBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	readLower(envIdempotencyStore, &cfg.IdempotencyStore)
	readString(envRedisURL, &cfg.RedisURL)
	readDuration(envIdempotencyTTL, &cfg.IdempotencyTTL, positiveDuration, "must be > 0")

	readLower(envOutboxPublisher, &cfg.OutboxPublisher)
	readString(envKafkaBrokers, &cfg.KafkaBrokers)
	readString(envKafkaClientID, &cfg.KafkaClientID)
	readString(envKafkaTopic, &cfg.KafkaTopic)
	readString(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	readString(envSNSTopicARN, &cfg.SNSTopicARN)
	readString(envSNSRegion, &cfg.SNSRegion)
	readDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	readInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	readInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	readDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	readInt(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")

	readDuration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	readInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, positive, "must be > 0")

	if v, ok := lookupTrimmed(lookup, envCheckoutRate); ok {
		parsed, err := parseFloat(v, func(f float64) bool { return f >= 0 }, "must be >= 0")
		if err != nil {
			warn(envCheckoutRate, v, err)
		} else {
			cfg.CheckoutRate = parsed
		}
	}
	readInt(envCheckoutBurst, &cfg.CheckoutBurst, positive, "must be > 0")

	return cfg, warnings
}

// lookupTrimmed возвращает значение без пробелов; пустое значение считается отсутствующим.
func lookupTrimmed(lookup envLookup, key string) (string, bool) {
	raw, ok := lookup(key)
	if !ok {
		return "", false
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", false
	}
	return v, true
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, errors.New("not a boolean")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func parseFloat(raw string, valid func(float64) bool, rule string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, errors.New(rule)
	}
	return v, nil
}
