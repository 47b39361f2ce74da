// Package processor orchestrates persistence and scoring for one
// transaction across both entry paths: the synchronous direct call and
// the queued path fed by the stream consumer.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fraudsentry/internal/models"
	"fraudsentry/internal/repositories"
	"fraudsentry/internal/repositories/cache"
	"fraudsentry/internal/services/rules"
	"fraudsentry/internal/stream"
	"fraudsentry/internal/validation"
)

// Scoring is the slice of the hybrid scorer the processor needs.
type Scoring interface {
	Score(tx *models.Transaction, rc *rules.Context) *models.RiskAssessment
	AlertWorthy(a *models.RiskAssessment) bool
}

// AssessmentCache is the read cache over persisted assessments.
type AssessmentCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Processor ties the scorer, storage, stream producer and alert sink
// together. Both concurrent entry points share one instance; it holds
// no mutable state of its own.
type Processor struct {
	repo      repositories.AssessmentRepository
	scorer    Scoring
	publisher Publisher
	alerts    AlertSink
	cache     AssessmentCache
	velocity  VelocityCounter
	cfg       Config
}

// New creates a transaction processor.
func New(repo repositories.AssessmentRepository, sc Scoring, publisher Publisher, alerts AlertSink, assessmentCache AssessmentCache, velocity VelocityCounter, cfg Config) *Processor {
	if repo == nil {
		panic("repository is required")
	}
	if sc == nil {
		panic("scorer is required")
	}
	if cfg.VelocityWindow <= 0 {
		cfg.VelocityWindow = 24 * time.Hour
	}
	if cfg.VelocityLimit <= 0 {
		cfg.VelocityLimit = rules.DefaultVelocityLimit
	}
	return &Processor{
		repo:      repo,
		scorer:    sc,
		publisher: publisher,
		alerts:    alerts,
		cache:     assessmentCache,
		velocity:  velocity,
		cfg:       cfg,
	}
}

// ProcessDirect runs the full pipeline synchronously: persist the
// transaction, score it, persist the assessment, broadcast if
// alert-worthy, return the assessment. Processing the same transaction
// id twice returns the first assessment unchanged.
func (p *Processor) ProcessDirect(ctx context.Context, tx *models.Transaction) (*models.RiskAssessment, error) {
	if err := validation.ValidateTransaction(tx); err != nil {
		return nil, err
	}
	p.ensureIdentity(tx)

	// Idempotency short-circuit: a redelivered or resubmitted
	// transaction must not create a second assessment.
	existing, err := p.repo.FindAssessmentByTransactionID(ctx, tx.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrAssessmentNotFound) {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}

	if err := p.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}

	assessment := p.scorer.Score(tx, p.ruleContext(ctx, tx))

	if err := p.repo.SaveAssessment(ctx, assessment); err != nil {
		if errors.Is(err, repositories.ErrDuplicateAssessment) {
			// A concurrent processor for the same id won the unique
			// constraint; its assessment is the canonical one.
			return p.repo.FindAssessmentByTransactionID(ctx, tx.ID)
		}
		return nil, err
	}

	p.cacheAssessment(ctx, assessment)

	// The assessment is persisted; only now may an alert reference it.
	if p.alerts != nil && p.scorer.AlertWorthy(assessment) {
		p.alerts.Broadcast(models.NewAlert(tx, assessment))
	}

	return assessment, nil
}

// SubmitQueued validates and publishes the transaction, returning an
// acceptance receipt. Nothing is persisted on this path; a publish
// failure therefore leaves no partial state.
func (p *Processor) SubmitQueued(ctx context.Context, tx *models.Transaction) (*Receipt, error) {
	if err := validation.ValidateTransaction(tx); err != nil {
		return nil, err
	}
	if p.publisher == nil {
		return nil, stream.ErrPublishFailed
	}
	p.ensureIdentity(tx)

	if err := p.publisher.Publish(ctx, tx); err != nil {
		return nil, err
	}

	return &Receipt{TransactionID: tx.ID, Status: "accepted"}, nil
}

// HandleStreamTransaction is the consumer-side entry point. Validation
// failures are non-retryable; everything else is assumed transient and
// left to the consumer's retry policy.
func (p *Processor) HandleStreamTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := p.ProcessDirect(ctx, tx)
	if errors.Is(err, validation.ErrValidation) {
		return fmt.Errorf("%w: %v", stream.ErrNonRetryable, err)
	}
	return err
}

// GetAssessment looks up the persisted assessment for a transaction id,
// trying the cache first.
func (p *Processor) GetAssessment(ctx context.Context, txID string) (*models.RiskAssessment, error) {
	if p.cache != nil {
		var cached models.RiskAssessment
		if hit, err := p.cache.Get(ctx, cache.AssessmentKey(txID), &cached); err == nil && hit {
			return &cached, nil
		}
	}
	return p.repo.FindAssessmentByTransactionID(ctx, txID)
}

// ensureIdentity mints a transaction id when the caller did not supply
// one and stamps the transaction time.
func (p *Processor) ensureIdentity(tx *models.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
}

// ruleContext sources the optional velocity signal. Counter failures
// degrade to the no-signal branch instead of failing the pipeline.
func (p *Processor) ruleContext(ctx context.Context, tx *models.Transaction) *rules.Context {
	if p.velocity == nil {
		return nil
	}
	count, err := p.velocity.IncrVelocity(ctx, tx.CustomerID, p.cfg.VelocityWindow)
	if err != nil {
		log.Printf("velocity counter unavailable for customer %s: %v", tx.CustomerID, err)
		return nil
	}
	return &rules.Context{RecentCount: count, VelocityLimit: p.cfg.VelocityLimit}
}

func (p *Processor) cacheAssessment(ctx context.Context, a *models.RiskAssessment) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, cache.AssessmentKey(a.TransactionID), a); err != nil {
		// Cache errors never fail the transaction.
		log.Printf("failed to cache assessment for %s: %v", a.TransactionID, err)
	}
}
