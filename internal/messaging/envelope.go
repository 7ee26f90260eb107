// Package messaging содержит общий формат событий, которые outbox публикует во внешние брокеры.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Envelope: конверт события outbox, одинаковый для Kafka и SNS.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает сообщение outbox.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		PublishedAt:   publishedAt.UTC(),
	}
}

// PartitionKey возвращает ключ упорядочивания: события одного заказа идут в одну партицию.
func (e Envelope) PartitionKey() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// Marshal кодирует конверт в JSON.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.ID, err)
	}
	return data, nil
}

// DeadLetter: содержимое DLQ-сообщения для события, которое не удалось опубликовать.
type DeadLetter struct {
	OutboxID       string          `json:"outbox_id"`
	AggregateType  string          `json:"aggregate_type"`
	AggregateID    string          `json:"aggregate_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	PublishError   string          `json:"publish_error"`
	DLQPublishedAt time.Time       `json:"dlq_published_at"`
}

// NewDeadLetterMessage упаковывает неопубликованное событие в сообщение для DLQ.
func NewDeadLetterMessage(msg domain.OutboxMessage, publishErr error, now time.Time) (domain.OutboxMessage, error) {
	letter := DeadLetter{
		OutboxID:       msg.ID,
		AggregateType:  msg.AggregateType,
		AggregateID:    msg.AggregateID,
		EventType:      msg.EventType,
		Payload:        NewEnvelope(msg, now).Payload,
		DLQPublishedAt: now.UTC(),
	}
	if publishErr != nil {
		letter.PublishError = publishErr.Error()
	}

	payload, err := json.Marshal(letter)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal dead letter: %w", err)
	}
	return domain.OutboxMessage{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
	}, nil
}

// ErrNotDeadLetter возвращается, когда сообщение из DLQ не содержит DeadLetter.
var ErrNotDeadLetter = errors.New("message is not a dead letter")

// ParseDeadLetter восстанавливает исходное событие outbox из DLQ-сообщения,
// опубликованного через NewDeadLetterMessage.
func ParseDeadLetter(data []byte) (domain.OutboxMessage, DeadLetter, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return domain.OutboxMessage{}, DeadLetter{}, fmt.Errorf("%w: %v", ErrNotDeadLetter, err)
	}
	if len(envelope.Payload) == 0 || string(envelope.Payload) == "null" {
		return domain.OutboxMessage{}, DeadLetter{}, ErrNotDeadLetter
	}

	var letter DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return domain.OutboxMessage{}, DeadLetter{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return domain.OutboxMessage{}, DeadLetter{}, fmt.Errorf("%w: original payload is missing", ErrNotDeadLetter)
	}

	msg := domain.OutboxMessage{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       []byte(letter.Payload),
	}
	if msg.ID == "" {
		return domain.OutboxMessage{}, DeadLetter{}, fmt.Errorf("%w: event id is missing", ErrNotDeadLetter)
	}
	return msg, letter, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
