package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fraudsentry/internal/models"

	"gorm.io/gorm"
)

// Repository errors
var (
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrDuplicateAssessment fires when the unique index on
	// transaction_id rejects a second assessment for the same
	// transaction. Callers treat it as an idempotency short-circuit,
	// not a failure.
	ErrDuplicateAssessment = errors.New("assessment already exists for transaction")
)

// AssessmentRepository is the storage boundary for the scoring pipeline.
// The pipeline depends only on these operations and their uniqueness
// guarantees, not on the storage technology behind them.
type AssessmentRepository interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	SaveAssessment(ctx context.Context, a *models.RiskAssessment) error
	FindAssessmentByTransactionID(ctx context.Context, txID string) (*models.RiskAssessment, error)
	FindTransactionByID(ctx context.Context, txID string) (*models.Transaction, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository creates a gorm-backed assessment repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	if db == nil {
		panic("db is required")
	}
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	err := r.db.WithContext(ctx).Create(tx).Error
	if err != nil && isUniqueViolation(err) {
		// Redelivery of an already persisted transaction; the
		// assessment-level idempotency check decides what to do next.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

func (r *assessmentRepository) SaveAssessment(ctx context.Context, a *models.RiskAssessment) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicateAssessment
	}
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

func (r *assessmentRepository) FindAssessmentByTransactionID(ctx context.Context, txID string) (*models.RiskAssessment, error) {
	var a models.RiskAssessment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", txID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find assessment: %w", err)
	}
	return &a, nil
}

func (r *assessmentRepository) FindTransactionByID(ctx context.Context, txID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", txID).First(&tx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &tx, nil
}

// isUniqueViolation matches the postgres duplicate-key error without
// importing the driver error types into every caller.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "SQLSTATE 23505")
}
