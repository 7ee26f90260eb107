package kafka

// Topics для Kafka
const (
	TopicOrderEvents     = "store.order.events"
	TopicDeadLetterQueue = "store.dlq" // Dead Letter Queue для событий, не опубликованных после retry
)

// Kafka headers сообщений outbox
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)
