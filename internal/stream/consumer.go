package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
)

// ErrNonRetryable marks a processing failure that retrying cannot fix
// (e.g. a malformed transaction). The consumer dead-letters such
// messages immediately instead of burning the retry budget.
var ErrNonRetryable = errors.New("non-retryable processing failure")

// Handler processes one reconstructed transaction off the topic.
type Handler interface {
	HandleStreamTransaction(ctx context.Context, tx *models.Transaction) error
}

// messageReader is the slice of kafka.Reader the consumer uses; tests
// substitute a fake broker through it.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deadLetterWriter publishes exhausted messages to the DLQ topic.
type deadLetterWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer pulls transactions off the topic, hands them to the
// processor, and commits the offset only after successful processing.
// It runs as one background task tied to process lifetime, not to any
// request. A poisoned message is retried a bounded number of times with
// backoff, then dead-lettered and committed past, so it cannot stall
// the partition.
type Consumer struct {
	reader     messageReader
	dlq        deadLetterWriter
	handler    Handler
	maxRetries int
	backoff    time.Duration

	running   atomic.Bool
	processed atomic.Int64
	errored   atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a consumer-group member for the transaction topic.
func NewConsumer(cfg config.KafkaConfig, handler Handler) *Consumer {
	if handler == nil {
		panic("handler is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.TransactionTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DeadLetterTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newConsumer(reader, dlq, handler, cfg.MaxRetries, cfg.RetryBackoff)
}

func newConsumer(reader messageReader, dlq deadLetterWriter, handler Handler, maxRetries int, backoff time.Duration) *Consumer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &Consumer{
		reader:     reader,
		dlq:        dlq,
		handler:    handler,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Start launches the consume loop in the background.
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.running.Store(true)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		c.consumeLoop(ctx)
	}()
	log.Println("stream consumer started")
}

// Stop cancels the loop and waits for it to drain.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if err := c.reader.Close(); err != nil {
		log.Printf("failed to close stream reader: %v", err)
	}
	if err := c.dlq.Close(); err != nil {
		log.Printf("failed to close dead-letter writer: %v", err)
	}
	log.Printf("stream consumer stopped: processed=%d errors=%d", c.processed.Load(), c.errored.Load())
}

// Running reports loop liveness for the status endpoint.
func (c *Consumer) Running() bool { return c.running.Load() }

// Stats returns processed and errored message counts.
func (c *Consumer) Stats() (processed, errored int64) {
	return c.processed.Load(), c.errored.Load()
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Transient broker trouble must not kill the loop.
			log.Printf("fetch failed, backing off: %v", err)
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
			continue
		}

		if err := c.handleMessage(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.errored.Add(1)
			log.Printf("message handling failed, dead-lettering: %v", err)
			c.deadLetter(ctx, msg, err)
		} else {
			c.processed.Add(1)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("offset commit failed: %v", err)
		}
	}
}

// handleMessage decodes one record and processes it with bounded
// retries. A nil return means the offset may be committed; a non-nil
// return means the message belongs on the dead-letter topic.
func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	decoded, err := DecodeMessage(msg.Value)
	if err != nil {
		// Undecodable payloads are permanently poisoned.
		return err
	}

	tx := decoded.Transaction
	if tx.ID == "" {
		tx.ID = decoded.TransactionID
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<(attempt-1))):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.handler.HandleStreamTransaction(ctx, &tx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNonRetryable) {
			return lastErr
		}
		log.Printf("processing attempt %d/%d for transaction %s failed: %v",
			attempt+1, c.maxRetries, tx.ID, lastErr)
	}
	return lastErr
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	dlqMsg := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(cause.Error()),
		}),
	}
	if err := c.dlq.WriteMessages(ctx, dlqMsg); err != nil {
		// The offset is still committed past this message; losing the
		// DLQ copy is logged loudly rather than stalling the partition.
		log.Printf("failed to write dead-letter message for key %s: %v", msg.Key, err)
	}
}
