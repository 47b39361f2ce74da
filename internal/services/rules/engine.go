package rules

import (
	"fmt"
	"strings"

	"fraudsentry/internal/models"
)

// Rule weights. Multiple independent red flags compound: the sub-score is
// the sum of fired weights, clamped to [0,1], not an average.
const (
	WeightHighAmount       = 0.4
	WeightMediumAmount     = 0.2
	WeightHighRiskMerchant = 0.3
	WeightHighRiskCountry  = 0.2
	WeightCrossBorder      = 0.1
	WeightRiskyCategory    = 0.25
	WeightSuspiciousName   = 0.3
	WeightRiskyPayment     = 0.2
	WeightMissingDevice    = 0.05
	WeightMissingIP        = 0.05
	WeightVelocity         = 0.25
)

// Amount bands
const (
	HighRiskAmount   = 10000.0
	MediumRiskAmount = 5000.0
)

// DefaultVelocityLimit is the per-customer transaction count over the
// velocity window above which the velocity rule fires.
const DefaultVelocityLimit = 10

var highRiskCountries = map[string]bool{
	"XX": true,
	"YY": true,
	"ZZ": true,
}

var highRiskCategories = map[string]bool{
	"Gambling":       true,
	"Money Transfer": true,
	"ATM":            true,
}

var highRiskPaymentMethods = map[string]bool{
	models.PaymentMethodPrepaidCard: true,
	models.PaymentMethodCash:        true,
}

var suspiciousMerchantTerms = []string{"test", "suspicious", "fraud"}

// Context carries optional signals the engine cannot source itself.
// A nil context (or zero fields) degrades every dependent rule to its
// no-signal branch.
type Context struct {
	// RecentCount is the customer's transaction count over the velocity
	// window, supplied by the caller.
	RecentCount   int64
	VelocityLimit int64
}

// Engine evaluates the deterministic rule catalog. It holds no state and
// is safe for unsynchronized concurrent use.
type Engine struct{}

// NewEngine creates a new rule engine.
func NewEngine() *Engine { return &Engine{} }

// Evaluate applies the full rule catalog to a transaction. It is total:
// unknown or missing optional fields never error, they simply produce no
// finding. The returned sub-score is the capped sum of fired weights.
func (e *Engine) Evaluate(tx *models.Transaction, rc *Context) (float64, []models.RiskFinding) {
	var findings []models.RiskFinding

	add := func(code string, weight float64, reason string) {
		findings = append(findings, models.RiskFinding{
			Origin: models.OriginRule,
			Code:   code,
			Weight: weight,
			Reason: reason,
		})
	}

	// Amount bands are monotonic: a higher amount never produces a lower
	// weight for otherwise identical transactions.
	switch {
	case tx.Amount > HighRiskAmount:
		add("high_amount", WeightHighAmount, fmt.Sprintf("High transaction amount: $%.2f", tx.Amount))
	case tx.Amount > MediumRiskAmount:
		add("medium_amount", WeightMediumAmount, fmt.Sprintf("Medium-high transaction amount: $%.2f", tx.Amount))
	}

	if highRiskCountries[tx.MerchantCountry] {
		add("high_risk_merchant_country", WeightHighRiskMerchant, fmt.Sprintf("High-risk merchant country: %s", tx.MerchantCountry))
	}

	if highRiskCountries[tx.TransactionCountry] {
		add("high_risk_transaction_country", WeightHighRiskCountry, fmt.Sprintf("High-risk transaction country: %s", tx.TransactionCountry))
	}

	if tx.CrossBorder() {
		add("cross_border", WeightCrossBorder, "Cross-border transaction")
	}

	if highRiskCategories[tx.MerchantCategory] {
		add("high_risk_category", WeightRiskyCategory, fmt.Sprintf("High-risk merchant category: %s", tx.MerchantCategory))
	}

	merchantLower := strings.ToLower(tx.MerchantName)
	for _, term := range suspiciousMerchantTerms {
		if strings.Contains(merchantLower, term) {
			add("suspicious_merchant", WeightSuspiciousName, fmt.Sprintf("Suspicious merchant name: %s", tx.MerchantName))
			break
		}
	}

	if highRiskPaymentMethods[tx.PaymentMethod] {
		add("high_risk_payment", WeightRiskyPayment, fmt.Sprintf("High-risk payment method: %s", tx.PaymentMethod))
	}

	if tx.DeviceID == "" {
		add("missing_device", WeightMissingDevice, "Missing device information")
	}

	if tx.IPAddress == "" {
		add("missing_ip", WeightMissingIP, "Missing IP address")
	}

	if rc != nil && rc.RecentCount > 0 {
		limit := rc.VelocityLimit
		if limit <= 0 {
			limit = DefaultVelocityLimit
		}
		if rc.RecentCount > limit {
			add("velocity", WeightVelocity, fmt.Sprintf("High transaction velocity: %d transactions in window", rc.RecentCount))
		}
	}

	return clamp(sumWeights(findings)), findings
}

func sumWeights(findings []models.RiskFinding) float64 {
	total := 0.0
	for _, f := range findings {
		total += f.Weight
	}
	return total
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
