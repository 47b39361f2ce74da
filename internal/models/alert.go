package models

import "time"

// Alert types
const (
	AlertTypeFraudDetected = "FRAUD_DETECTED"
	AlertTypeHighRisk      = "HIGH_RISK"
)

// Alert is the transient broadcast payload for an assessment that crossed
// the alert threshold. It is never persisted; the assessment row is the
// durable record.
type Alert struct {
	TransactionID string    `json:"transaction_id"`
	AlertType     string    `json:"alert_type"`
	Amount        float64   `json:"amount"`
	Merchant      string    `json:"merchant"`
	CustomerID    string    `json:"customer_id"`
	RiskScore     float64   `json:"risk_score"`
	Reasons       []string  `json:"reasons"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewAlert builds the broadcast payload from a transaction and its assessment.
func NewAlert(tx *Transaction, assessment *RiskAssessment) Alert {
	alertType := AlertTypeHighRisk
	if assessment.IsFraud {
		alertType = AlertTypeFraudDetected
	}
	return Alert{
		TransactionID: tx.ID,
		AlertType:     alertType,
		Amount:        tx.Amount,
		Merchant:      tx.MerchantName,
		CustomerID:    tx.CustomerID,
		RiskScore:     assessment.RiskScore,
		Reasons:       assessment.Reasons.Texts(),
		Timestamp:     time.Now().UTC(),
	}
}
