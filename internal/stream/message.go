// Package stream moves transactions through Kafka: a producer keyed by
// customer so each customer's transactions stay ordered, and a consumer
// group that scores them and commits offsets only after processing.
package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"fraudsentry/internal/models"
)

// Message is the on-wire envelope for a queued transaction: the full
// transaction plus the enqueue timestamp. The consumer reconstructs an
// equivalent Transaction from it.
type Message struct {
	TransactionID string             `json:"transaction_id"`
	EnqueuedAt    time.Time          `json:"enqueued_at"`
	Transaction   models.Transaction `json:"data"`
}

// NewMessage wraps a transaction for publishing.
func NewMessage(tx *models.Transaction) Message {
	return Message{
		TransactionID: tx.ID,
		EnqueuedAt:    time.Now().UTC(),
		Transaction:   *tx,
	}
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode stream message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a wire payload back into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode stream message: %w", err)
	}
	return m, nil
}
