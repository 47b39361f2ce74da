package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
)

// ErrPublishFailed surfaces a queue delivery failure to the caller of
// the queued-mode API so the client can retry or fall back to the
// direct path. It is never swallowed.
var ErrPublishFailed = errors.New("failed to publish transaction")

// Producer publishes transactions onto the transaction topic. The
// partition key is the customer id, so all of one customer's
// transactions are strictly ordered relative to each other.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the transaction topic.
func NewProducer(cfg config.KafkaConfig) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.TransactionTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 250 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// Publish enqueues one transaction and waits for the broker ack.
func (p *Producer) Publish(ctx context.Context, tx *models.Transaction) error {
	msg := NewMessage(tx)
	value, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(tx.CustomerID),
		Value: value,
		Time:  msg.EnqueuedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
