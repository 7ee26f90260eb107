package messaging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestEnvelope_MarshalKeepsPayloadRaw(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := NewEnvelope(domain.OutboxMessage{
		ID:            "m-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "o-1",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"o-1"}`),
	}, now)

	data, err := env.Marshal()
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id":"m-1",
		"aggregate_type":"order",
		"aggregate_id":"o-1",
		"event_type":"order.placed",
		"payload":{"order_id":"o-1"},
		"published_at":"2026-03-01T12:00:00Z"
	}`, string(data))
	require.Equal(t, "o-1", env.PartitionKey())
}

func TestEnvelope_EmptyPayloadAndKeyFallback(t *testing.T) {
	env := NewEnvelope(domain.OutboxMessage{ID: "m-2"}, time.Now())
	require.Equal(t, "m-2", env.PartitionKey())

	data, err := env.Marshal()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Nil(t, decoded["payload"])
}

func TestNewDeadLetterMessage(t *testing.T) {
	msg, err := NewDeadLetterMessage(domain.OutboxMessage{
		ID:          "m-3",
		AggregateID: "o-3",
		EventType:   domain.EventOrderStatusChanged,
		Payload:     []byte(`{"status":"shipped"}`),
	}, errors.New("broker down"), time.Now())
	require.NoError(t, err)
	require.Equal(t, "m-3", msg.ID)

	var letter DeadLetter
	require.NoError(t, json.Unmarshal(msg.Payload, &letter))
	require.Equal(t, "m-3", letter.OutboxID)
	require.Equal(t, "broker down", letter.PublishError)
	require.JSONEq(t, `{"status":"shipped"}`, string(letter.Payload))
}

func TestParseDeadLetter_RoundTrip(t *testing.T) {
	original := domain.OutboxMessage{
		ID:            "m-4",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "o-4",
		EventType:     domain.EventOrderPlaced,
		Payload:       []byte(`{"order_id":"o-4"}`),
	}
	dlq, err := NewDeadLetterMessage(original, errors.New("timeout"), time.Now())
	require.NoError(t, err)

	// Так сообщение лежит в DLQ-топике: конверт, в payload которого DeadLetter.
	data, err := NewEnvelope(dlq, time.Now()).Marshal()
	require.NoError(t, err)

	restored, letter, err := ParseDeadLetter(data)
	require.NoError(t, err)
	require.Equal(t, original.ID, restored.ID)
	require.Equal(t, original.AggregateID, restored.AggregateID)
	require.Equal(t, original.EventType, restored.EventType)
	require.JSONEq(t, string(original.Payload), string(restored.Payload))
	require.Equal(t, "timeout", letter.PublishError)
}

func TestParseDeadLetter_RejectsOtherMessages(t *testing.T) {
	_, _, err := ParseDeadLetter([]byte("not json"))
	require.ErrorIs(t, err, ErrNotDeadLetter)

	plain, err := NewEnvelope(domain.OutboxMessage{ID: "m-5"}, time.Now()).Marshal()
	require.NoError(t, err)
	_, _, err = ParseDeadLetter(plain)
	require.ErrorIs(t, err, ErrNotDeadLetter)

	regular, err := NewEnvelope(domain.OutboxMessage{ID: "m-6", Payload: []byte(`{"order_id":"o-6"}`)}, time.Now()).Marshal()
	require.NoError(t, err)
	_, _, err = ParseDeadLetter(regular)
	require.ErrorIs(t, err, ErrNotDeadLetter)
}
