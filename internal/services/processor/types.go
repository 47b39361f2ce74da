package processor

import (
	"context"
	"time"

	"fraudsentry/internal/models"
)

// Receipt acknowledges that a queued-mode transaction was accepted for
// processing. The assessment materializes later via the consumer path
// and is retrievable by transaction id.
type Receipt struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Publisher is the queued-path dependency: the stream producer.
type Publisher interface {
	Publish(ctx context.Context, tx *models.Transaction) error
}

// AlertSink receives alerts for assessments that crossed the broadcast
// threshold. Delivery is fire-and-forget relative to scoring.
type AlertSink interface {
	Broadcast(alert models.Alert)
}

// VelocityCounter supplies the optional per-customer frequency context
// for the velocity rule.
type VelocityCounter interface {
	IncrVelocity(ctx context.Context, customerID string, window time.Duration) (int64, error)
}

// Config holds processor tunables.
type Config struct {
	// VelocityWindow is the frequency-counting window per customer.
	VelocityWindow time.Duration
	// VelocityLimit is the count above which the velocity rule fires.
	VelocityLimit int64
}
