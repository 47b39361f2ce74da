package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudsentry/internal/models"
)

type fakeReader struct {
	mu       sync.Mutex
	messages chan kafka.Message
	commits  []kafka.Message
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs)+1)
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{messages: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) committed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commits)
}

type fakeDLQ struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *fakeDLQ) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeDLQ) Close() error { return nil }

func (w *fakeDLQ) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

type scriptedHandler struct {
	mu    sync.Mutex
	errs  []error
	calls []models.Transaction
}

func (h *scriptedHandler) HandleStreamTransaction(_ context.Context, tx *models.Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, *tx)
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (h *scriptedHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func queuedMessage(t *testing.T, tx *models.Transaction) kafka.Message {
	t.Helper()
	value, err := NewMessage(tx).Encode()
	require.NoError(t, err)
	return kafka.Message{Key: []byte(tx.CustomerID), Value: value}
}

func streamTx(id string) *models.Transaction {
	return &models.Transaction{
		ID:                 id,
		Amount:             120,
		TransactionType:    models.TransactionTypePurchase,
		MerchantName:       "Corner Store",
		MerchantCategory:   "Retail",
		MerchantCountry:    "US",
		CustomerID:         "cust-5",
		PaymentMethod:      models.PaymentMethodDebitCard,
		TransactionCountry: "US",
		Timestamp:          time.Now().UTC(),
	}
}

func TestHandleMessage_ReconstructsEquivalentTransaction(t *testing.T) {
	handler := &scriptedHandler{}
	c := newConsumer(newFakeReader(), &fakeDLQ{}, handler, 3, time.Millisecond)

	original := streamTx("tx-s1")
	require.NoError(t, c.handleMessage(context.Background(), queuedMessage(t, original)))

	require.Equal(t, 1, handler.callCount())
	got := handler.calls[0]
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Amount, got.Amount)
	assert.Equal(t, original.CustomerID, got.CustomerID)
	assert.Equal(t, original.MerchantName, got.MerchantName)
}

func TestHandleMessage_RetriesTransientFailures(t *testing.T) {
	handler := &scriptedHandler{errs: []error{errors.New("db blip"), errors.New("db blip")}}
	c := newConsumer(newFakeReader(), &fakeDLQ{}, handler, 3, time.Millisecond)

	err := c.handleMessage(context.Background(), queuedMessage(t, streamTx("tx-s2")))
	assert.NoError(t, err)
	assert.Equal(t, 3, handler.callCount())
}

func TestHandleMessage_ExhaustedRetriesSurfaceLastError(t *testing.T) {
	boom := errors.New("still broken")
	handler := &scriptedHandler{errs: []error{boom, boom, boom}}
	c := newConsumer(newFakeReader(), &fakeDLQ{}, handler, 3, time.Millisecond)

	err := c.handleMessage(context.Background(), queuedMessage(t, streamTx("tx-s3")))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, handler.callCount())
}

func TestHandleMessage_NonRetryableSkipsRetries(t *testing.T) {
	handler := &scriptedHandler{errs: []error{ErrNonRetryable}}
	c := newConsumer(newFakeReader(), &fakeDLQ{}, handler, 3, time.Millisecond)

	err := c.handleMessage(context.Background(), queuedMessage(t, streamTx("tx-s4")))
	assert.ErrorIs(t, err, ErrNonRetryable)
	assert.Equal(t, 1, handler.callCount())
}

func TestHandleMessage_UndecodablePayloadFails(t *testing.T) {
	handler := &scriptedHandler{}
	c := newConsumer(newFakeReader(), &fakeDLQ{}, handler, 3, time.Millisecond)

	err := c.handleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
	assert.Equal(t, 0, handler.callCount())
}

func TestConsumeLoop_CommitsAfterProcessing(t *testing.T) {
	reader := newFakeReader(queuedMessage(t, streamTx("tx-l1")))
	handler := &scriptedHandler{}
	c := newConsumer(reader, &fakeDLQ{}, handler, 3, time.Millisecond)

	c.Start(context.Background())
	defer c.Stop()

	assert.Eventually(t, func() bool {
		processed, _ := c.Stats()
		return processed == 1 && reader.committed() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.Running())
}

func TestConsumeLoop_DeadLettersPoisonedMessageAndContinues(t *testing.T) {
	poisoned := kafka.Message{Key: []byte("cust-x"), Value: []byte("garbage")}
	healthy := queuedMessage(t, streamTx("tx-l2"))
	reader := newFakeReader(poisoned, healthy)
	dlq := &fakeDLQ{}
	handler := &scriptedHandler{}
	c := newConsumer(reader, dlq, handler, 3, time.Millisecond)

	c.Start(context.Background())
	defer c.Stop()

	// The poisoned message lands on the DLQ and the partition moves on
	// to the healthy one.
	assert.Eventually(t, func() bool {
		processed, errored := c.Stats()
		return processed == 1 && errored == 1 && dlq.count() == 1 && reader.committed() == 2
	}, 2*time.Second, 10*time.Millisecond)

	dlq.mu.Lock()
	defer dlq.mu.Unlock()
	require.Len(t, dlq.messages[0].Headers, 1)
	assert.Equal(t, "x-dead-letter-reason", dlq.messages[0].Headers[0].Key)
}

func TestConsumerLifecycle(t *testing.T) {
	reader := newFakeReader()
	c := newConsumer(reader, &fakeDLQ{}, &scriptedHandler{}, 3, time.Millisecond)

	assert.False(t, c.Running())
	c.Start(context.Background())
	assert.Eventually(t, func() bool { return c.Running() }, time.Second, 5*time.Millisecond)

	c.Stop()
	assert.False(t, c.Running())
}
