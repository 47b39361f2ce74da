// Package scorer combines the deterministic rule engine with the ML
// model into a single explainable risk assessment.
package scorer

import (
	"errors"
	"fmt"
	"log"
	"time"

	"fraudsentry/internal/config"
	"fraudsentry/internal/models"
	"fraudsentry/internal/services/mlmodel"
	"fraudsentry/internal/services/rules"
)

// Predictor is the slice of the ML model the scorer needs.
type Predictor interface {
	Predict(tx *models.Transaction) (float64, error)
	Version() string
}

// RuleEvaluator is the slice of the rule engine the scorer needs.
type RuleEvaluator interface {
	Evaluate(tx *models.Transaction, rc *rules.Context) (float64, []models.RiskFinding)
}

// Scorer is stateless given its inputs; the loaded model is the only
// shared state and it is read-only, so concurrent Score calls need no
// synchronization.
type Scorer struct {
	engine RuleEvaluator
	model  Predictor
	cfg    config.ScoringConfig
}

// New creates a hybrid scorer.
func New(engine RuleEvaluator, model Predictor, cfg config.ScoringConfig) *Scorer {
	if engine == nil {
		panic("rule engine is required")
	}
	if model == nil {
		panic("model is required")
	}
	return &Scorer{engine: engine, model: model, cfg: cfg}
}

// Score produces the risk assessment for one transaction. With the model
// available the score is the configured blend of rule sub-score and ML
// probability; in degraded mode it equals the rule sub-score exactly and
// the reason list says so.
func (s *Scorer) Score(tx *models.Transaction, rc *rules.Context) *models.RiskAssessment {
	ruleScore, findings := s.engine.Evaluate(tx, rc)

	reasons := make(models.ReasonList, 0, len(findings)+2)
	reasons = append(reasons, findings...)

	var riskScore float64
	degraded := false

	mlProb, err := s.model.Predict(tx)
	switch {
	case err == nil:
		riskScore = clamp(s.cfg.RuleWeight*ruleScore + s.cfg.MLWeight*mlProb)
		// Only annotate the model's contribution when it is material;
		// a near-neutral probability adds noise, not signal.
		if mlProb >= s.cfg.MLHighReasonThreshold {
			reasons = append(reasons, mlFinding("ml_high_probability", mlProb,
				fmt.Sprintf("ML model detected high fraud probability (%.2f)", mlProb)))
		} else if mlProb >= s.cfg.MLReasonThreshold {
			reasons = append(reasons, mlFinding("ml_medium_probability", mlProb,
				fmt.Sprintf("ML model detected medium fraud probability (%.2f)", mlProb)))
		}
	case errors.Is(err, mlmodel.ErrModelUnavailable):
		riskScore = ruleScore
		degraded = true
		reasons = append(reasons, mlFinding("ml_degraded", 0,
			"ML model unavailable, scored with rules only"))
	default:
		// Unexpected inference error: treat the same as unavailable
		// rather than failing the pipeline.
		log.Printf("ml prediction error, falling back to rules: %v", err)
		riskScore = ruleScore
		degraded = true
		reasons = append(reasons, mlFinding("ml_degraded", 0,
			"ML model unavailable, scored with rules only"))
	}

	return &models.RiskAssessment{
		TransactionID: tx.ID,
		RiskScore:     riskScore,
		RiskLevel:     s.riskLevel(riskScore),
		IsFraud:       riskScore >= s.cfg.FraudThreshold,
		Reasons:       reasons,
		ModelVersion:  s.model.Version(),
		Degraded:      degraded,
		CreatedAt:     time.Now().UTC(),
	}
}

// AlertWorthy reports whether an assessment should be broadcast.
func (s *Scorer) AlertWorthy(a *models.RiskAssessment) bool {
	return a.AlertWorthy(s.cfg.AlertThreshold)
}

func (s *Scorer) riskLevel(score float64) string {
	switch {
	case score >= s.cfg.FraudThreshold:
		return models.RiskLevelHigh
	case score >= s.cfg.AlertThreshold:
		return models.RiskLevelMedium
	default:
		return models.RiskLevelLow
	}
}

func mlFinding(code string, weight float64, reason string) models.RiskFinding {
	return models.RiskFinding{
		Origin: models.OriginML,
		Code:   code,
		Weight: weight,
		Reason: reason,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
