package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fraudsentry/internal/models"
	"fraudsentry/internal/repositories"
	"fraudsentry/internal/services/rules"
	"fraudsentry/internal/stream"
	"fraudsentry/internal/validation"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	args := m.Called(tx)
	return args.Error(0)
}

func (m *MockRepo) SaveAssessment(ctx context.Context, a *models.RiskAssessment) error {
	args := m.Called(a)
	return args.Error(0)
}

func (m *MockRepo) FindAssessmentByTransactionID(ctx context.Context, txID string) (*models.RiskAssessment, error) {
	args := m.Called(txID)
	if a := args.Get(0); a != nil {
		return a.(*models.RiskAssessment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepo) FindTransactionByID(ctx context.Context, txID string) (*models.Transaction, error) {
	args := m.Called(txID)
	if tx := args.Get(0); tx != nil {
		return tx.(*models.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubScorer struct {
	score      float64
	alertAbove float64
}

func (s *stubScorer) Score(tx *models.Transaction, _ *rules.Context) *models.RiskAssessment {
	return &models.RiskAssessment{
		TransactionID: tx.ID,
		RiskScore:     s.score,
		RiskLevel:     models.RiskLevelMedium,
		CreatedAt:     time.Now().UTC(),
	}
}

func (s *stubScorer) AlertWorthy(a *models.RiskAssessment) bool {
	return a.RiskScore >= s.alertAbove
}

type stubPublisher struct {
	err       error
	published []*models.Transaction
}

func (p *stubPublisher) Publish(_ context.Context, tx *models.Transaction) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, tx)
	return nil
}

type recordingSink struct {
	alerts []models.Alert
}

func (r *recordingSink) Broadcast(alert models.Alert) {
	r.alerts = append(r.alerts, alert)
}

func validTx() *models.Transaction {
	return &models.Transaction{
		ID:                 "tx-100",
		Amount:             250,
		TransactionType:    models.TransactionTypePurchase,
		MerchantName:       "Book Nook",
		MerchantCategory:   "Retail",
		MerchantCountry:    "US",
		CustomerID:         "cust-7",
		PaymentMethod:      models.PaymentMethodCreditCard,
		TransactionCountry: "US",
	}
}

func newTestProcessor(repo *MockRepo, sc Scoring, pub Publisher, sink AlertSink) *Processor {
	return New(repo, sc, pub, sink, nil, nil, Config{})
}

func TestProcessDirect_PersistsThenAlerts(t *testing.T) {
	repo := new(MockRepo)
	sink := &recordingSink{}
	p := newTestProcessor(repo, &stubScorer{score: 0.5, alertAbove: 0.3}, nil, sink)

	repo.On("FindAssessmentByTransactionID", "tx-100").Return(nil, repositories.ErrAssessmentNotFound)
	repo.On("SaveTransaction", mock.Anything).Return(nil)
	repo.On("SaveAssessment", mock.Anything).Return(nil)

	a, err := p.ProcessDirect(context.Background(), validTx())
	require.NoError(t, err)

	assert.Equal(t, "tx-100", a.TransactionID)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, "tx-100", sink.alerts[0].TransactionID)
	repo.AssertExpectations(t)
}

func TestProcessDirect_BelowAlertThresholdStaysQuiet(t *testing.T) {
	repo := new(MockRepo)
	sink := &recordingSink{}
	p := newTestProcessor(repo, &stubScorer{score: 0.1, alertAbove: 0.3}, nil, sink)

	repo.On("FindAssessmentByTransactionID", "tx-100").Return(nil, repositories.ErrAssessmentNotFound)
	repo.On("SaveTransaction", mock.Anything).Return(nil)
	repo.On("SaveAssessment", mock.Anything).Return(nil)

	_, err := p.ProcessDirect(context.Background(), validTx())
	require.NoError(t, err)
	assert.Empty(t, sink.alerts)
}

func TestProcessDirect_IdempotencyShortCircuit(t *testing.T) {
	repo := new(MockRepo)
	sink := &recordingSink{}
	p := newTestProcessor(repo, &stubScorer{score: 0.5, alertAbove: 0.3}, nil, sink)

	existing := &models.RiskAssessment{TransactionID: "tx-100", RiskScore: 0.42}
	repo.On("FindAssessmentByTransactionID", "tx-100").Return(existing, nil)

	a, err := p.ProcessDirect(context.Background(), validTx())
	require.NoError(t, err)

	// The first assessment comes back unchanged; nothing is re-persisted
	// and no second alert fires.
	assert.Same(t, existing, a)
	assert.Empty(t, sink.alerts)
	repo.AssertNotCalled(t, "SaveTransaction", mock.Anything)
	repo.AssertNotCalled(t, "SaveAssessment", mock.Anything)
}

func TestProcessDirect_ConcurrentDuplicateResolvesToWinner(t *testing.T) {
	repo := new(MockRepo)
	p := newTestProcessor(repo, &stubScorer{score: 0.5, alertAbove: 0.9}, nil, nil)

	winner := &models.RiskAssessment{TransactionID: "tx-100", RiskScore: 0.33}
	repo.On("FindAssessmentByTransactionID", "tx-100").Return(nil, repositories.ErrAssessmentNotFound).Once()
	repo.On("SaveTransaction", mock.Anything).Return(nil)
	repo.On("SaveAssessment", mock.Anything).Return(repositories.ErrDuplicateAssessment)
	repo.On("FindAssessmentByTransactionID", "tx-100").Return(winner, nil).Once()

	a, err := p.ProcessDirect(context.Background(), validTx())
	require.NoError(t, err)
	assert.Same(t, winner, a)
}

func TestProcessDirect_RejectsInvalidTransaction(t *testing.T) {
	repo := new(MockRepo)
	p := newTestProcessor(repo, &stubScorer{}, nil, nil)

	tx := validTx()
	tx.Amount = -5

	_, err := p.ProcessDirect(context.Background(), tx)
	assert.ErrorIs(t, err, validation.ErrValidation)
	repo.AssertNotCalled(t, "SaveTransaction", mock.Anything)
}

func TestSubmitQueued_PublishesWithoutPersisting(t *testing.T) {
	repo := new(MockRepo)
	pub := &stubPublisher{}
	p := newTestProcessor(repo, &stubScorer{}, pub, nil)

	receipt, err := p.SubmitQueued(context.Background(), validTx())
	require.NoError(t, err)

	assert.Equal(t, "tx-100", receipt.TransactionID)
	assert.Equal(t, "accepted", receipt.Status)
	require.Len(t, pub.published, 1)
	repo.AssertNotCalled(t, "SaveTransaction", mock.Anything)
}

func TestSubmitQueued_MintsIDWhenAbsent(t *testing.T) {
	p := newTestProcessor(new(MockRepo), &stubScorer{}, &stubPublisher{}, nil)

	tx := validTx()
	tx.ID = ""

	receipt, err := p.SubmitQueued(context.Background(), tx)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.TransactionID)
	assert.Equal(t, tx.ID, receipt.TransactionID)
}

func TestSubmitQueued_PublishFailureLeavesNoState(t *testing.T) {
	repo := new(MockRepo)
	pub := &stubPublisher{err: stream.ErrPublishFailed}
	p := newTestProcessor(repo, &stubScorer{}, pub, nil)

	_, err := p.SubmitQueued(context.Background(), validTx())
	assert.ErrorIs(t, err, stream.ErrPublishFailed)
	repo.AssertNotCalled(t, "SaveTransaction", mock.Anything)
	repo.AssertNotCalled(t, "SaveAssessment", mock.Anything)
}

func TestHandleStreamTransaction_ValidationIsNonRetryable(t *testing.T) {
	p := newTestProcessor(new(MockRepo), &stubScorer{}, nil, nil)

	tx := validTx()
	tx.CustomerID = ""

	err := p.HandleStreamTransaction(context.Background(), tx)
	assert.ErrorIs(t, err, stream.ErrNonRetryable)
}

func TestHandleStreamTransaction_RedeliveryReturnsNoError(t *testing.T) {
	repo := new(MockRepo)
	p := newTestProcessor(repo, &stubScorer{score: 0.5, alertAbove: 0.9}, nil, nil)

	existing := &models.RiskAssessment{TransactionID: "tx-100"}
	repo.On("FindAssessmentByTransactionID", "tx-100").Return(existing, nil)

	assert.NoError(t, p.HandleStreamTransaction(context.Background(), validTx()))
}
