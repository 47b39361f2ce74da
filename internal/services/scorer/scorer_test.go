package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
	"fraudsentry/internal/services/mlmodel"
	"fraudsentry/internal/services/rules"
)

type stubEngine struct {
	score    float64
	findings []models.RiskFinding
}

func (s *stubEngine) Evaluate(_ *models.Transaction, _ *rules.Context) (float64, []models.RiskFinding) {
	return s.score, s.findings
}

type stubModel struct {
	prob    float64
	err     error
	version string
}

func (s *stubModel) Predict(_ *models.Transaction) (float64, error) { return s.prob, s.err }
func (s *stubModel) Version() string                                { return s.version }

func testConfig() config.ScoringConfig {
	return config.ScoringConfig{
		RuleWeight:            0.4,
		MLWeight:              0.6,
		FraudThreshold:        0.7,
		AlertThreshold:        0.3,
		MLReasonThreshold:     0.5,
		MLHighReasonThreshold: 0.7,
	}
}

func testTx() *models.Transaction {
	return &models.Transaction{ID: "tx-42", Amount: 5000, CustomerID: "cust-1", Timestamp: time.Now().UTC()}
}

func ruleFinding(code string) models.RiskFinding {
	return models.RiskFinding{Origin: models.OriginRule, Code: code, Weight: 0.2, Reason: code}
}

func TestScore_BlendsRuleAndML(t *testing.T) {
	s := New(
		&stubEngine{score: 0.4, findings: []models.RiskFinding{ruleFinding("cross_border"), ruleFinding("high_risk_category")}},
		&stubModel{prob: 0.8, version: "v3"},
		testConfig(),
	)

	a := s.Score(testTx(), nil)

	// 0.4*0.4 + 0.6*0.8 = 0.64: alert-worthy, not fraud under 0.7.
	assert.InDelta(t, 0.64, a.RiskScore, 1e-9)
	assert.False(t, a.IsFraud)
	assert.True(t, s.AlertWorthy(a))
	assert.Equal(t, models.RiskLevelMedium, a.RiskLevel)
	assert.Equal(t, "v3", a.ModelVersion)
	assert.False(t, a.Degraded)
	assert.Equal(t, "tx-42", a.TransactionID)
}

func TestScore_RuleFindingsPrecedeMLReasons(t *testing.T) {
	s := New(
		&stubEngine{score: 0.3, findings: []models.RiskFinding{ruleFinding("cross_border")}},
		&stubModel{prob: 0.95, version: "v3"},
		testConfig(),
	)

	a := s.Score(testTx(), nil)

	assert.Equal(t, models.OriginRule, a.Reasons[0].Origin)
	last := a.Reasons[len(a.Reasons)-1]
	assert.Equal(t, models.OriginML, last.Origin)
	assert.Equal(t, "ml_high_probability", last.Code)
}

func TestScore_MLReasonBandsFollowConfig(t *testing.T) {
	// Raising the high band reclassifies the same probability as medium.
	cfg := testConfig()
	cfg.MLHighReasonThreshold = 0.9

	s := New(&stubEngine{score: 0.2}, &stubModel{prob: 0.8, version: "v3"}, cfg)
	a := s.Score(testTx(), nil)

	last := a.Reasons[len(a.Reasons)-1]
	assert.Equal(t, models.OriginML, last.Origin)
	assert.Equal(t, "ml_medium_probability", last.Code)
}

func TestScore_NearNeutralMLStaysQuiet(t *testing.T) {
	s := New(
		&stubEngine{score: 0.2, findings: []models.RiskFinding{ruleFinding("cross_border")}},
		&stubModel{prob: 0.45, version: "v3"},
		testConfig(),
	)

	a := s.Score(testTx(), nil)

	for _, r := range a.Reasons {
		assert.NotEqual(t, models.OriginML, r.Origin)
	}
}

func TestScore_DegradedEqualsRuleScoreExactly(t *testing.T) {
	tests := []struct {
		name      string
		ruleScore float64
	}{
		{name: "low", ruleScore: 0.15},
		{name: "medium", ruleScore: 0.45},
		{name: "high", ruleScore: 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(
				&stubEngine{score: tt.ruleScore},
				&stubModel{err: mlmodel.ErrModelUnavailable},
				testConfig(),
			)

			a := s.Score(testTx(), nil)

			assert.Equal(t, tt.ruleScore, a.RiskScore)
			assert.True(t, a.Degraded)

			found := false
			for _, r := range a.Reasons {
				if r.Origin == models.OriginML && r.Code == "ml_degraded" {
					found = true
				}
			}
			assert.True(t, found, "degraded marker reason expected")
		})
	}
}

func TestScore_FraudFlagMatchesThreshold(t *testing.T) {
	tests := []struct {
		name    string
		rule    float64
		ml      float64
		isFraud bool
		level   string
	}{
		{name: "well below", rule: 0.1, ml: 0.1, isFraud: false, level: models.RiskLevelLow},
		{name: "just below", rule: 0.7, ml: 0.69, isFraud: false, level: models.RiskLevelMedium},
		{name: "at threshold", rule: 0.7, ml: 0.7, isFraud: true, level: models.RiskLevelHigh},
		{name: "above", rule: 1.0, ml: 0.95, isFraud: true, level: models.RiskLevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&stubEngine{score: tt.rule}, &stubModel{prob: tt.ml}, testConfig())
			a := s.Score(testTx(), nil)

			assert.GreaterOrEqual(t, a.RiskScore, 0.0)
			assert.LessOrEqual(t, a.RiskScore, 1.0)
			assert.Equal(t, tt.isFraud, a.IsFraud)
			assert.Equal(t, tt.isFraud, a.RiskScore >= testConfig().FraudThreshold)
			assert.Equal(t, tt.level, a.RiskLevel)
		})
	}
}

func TestScore_UnexpectedModelErrorDegrades(t *testing.T) {
	s := New(&stubEngine{score: 0.5}, &stubModel{err: assert.AnError}, testConfig())

	a := s.Score(testTx(), nil)

	assert.Equal(t, 0.5, a.RiskScore)
	assert.True(t, a.Degraded)
}
