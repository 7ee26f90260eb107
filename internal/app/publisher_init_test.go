package app

import (
	"context"
	"reflect"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(" , ", "storefront", logger)
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer("invalid-broker:9999", "storefront", logger)
	if err == nil {
		t.Error("expected error for invalid brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestSplitBrokers(t *testing.T) {
	got := splitBrokers(" broker1:9092, ,broker2:9092 ")
	want := []string{"broker1:9092", "broker2:9092"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCloseKafkaProducer_Nil(_ *testing.T) {
	closeKafkaProducer(nil, log.WithField("test", "kafka-close"))
}

func TestInitOutboxPublishers(t *testing.T) {
	logger := log.WithField("test", "outbox-publishers")
	ctx := context.Background()

	none, err := initOutboxPublishers(ctx, Config{OutboxPublisher: OutboxPublisherNone}, logger)
	if err != nil || none.main != nil {
		t.Fatalf("none publisher must be disabled, got %+v err %v", none, err)
	}

	if _, err := initOutboxPublishers(ctx, Config{OutboxPublisher: OutboxPublisherKafka}, logger); err == nil {
		t.Fatal("expected error for kafka publisher without brokers")
	}

	if _, err := initOutboxPublishers(ctx, Config{OutboxPublisher: OutboxPublisherSNS}, logger); err == nil {
		t.Fatal("expected error for sns publisher without topic arn")
	}

	if _, err := initOutboxPublishers(ctx, Config{OutboxPublisher: "smtp"}, logger); err == nil {
		t.Fatal("expected error for unsupported publisher")
	}
}
