package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Reason origins
const (
	OriginRule = "rule"
	OriginML   = "ml"
)

// Risk levels
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// RiskFinding is one triggered signal: a deterministic rule's hit or the
// ML model's contribution, tagged with its origin so downstream consumers
// never have to parse prefixes out of reason strings.
type RiskFinding struct {
	Origin string  `json:"origin"`
	Code   string  `json:"code"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// ReasonList stores findings as jsonb on the assessment row.
type ReasonList []RiskFinding

// Value implements the driver.Valuer interface
func (r ReasonList) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements the sql.Scanner interface
func (r *ReasonList) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// Texts returns the reason strings in finding order, each prefixed with
// its origin ("rule: ..." or "ml: ...") for display surfaces that carry
// flat string lists.
func (r ReasonList) Texts() []string {
	out := make([]string, 0, len(r))
	for _, f := range r {
		out = append(out, f.Origin+": "+f.Reason)
	}
	return out
}

// RiskAssessment is the derived verdict for one transaction. Exactly one
// assessment exists per transaction id (enforced by a unique index); a
// re-score creates a new row for a new transaction, never an update.
type RiskAssessment struct {
	ID            uint       `gorm:"primarykey" json:"-"`
	TransactionID string     `gorm:"size:64;not null;uniqueIndex" json:"transaction_id"`
	RiskScore     float64    `gorm:"not null" json:"risk_score"`
	RiskLevel     string     `gorm:"size:20;not null" json:"risk_level"`
	IsFraud       bool       `gorm:"not null;index" json:"is_fraud"`
	Reasons       ReasonList `gorm:"type:jsonb" json:"reasons"`
	ModelVersion  string     `gorm:"size:50" json:"model_version"`
	Degraded      bool       `gorm:"not null;default:false" json:"degraded"`
	CreatedAt     time.Time  `json:"created_at"`
}

// AlertWorthy reports whether the assessment crosses the broadcast threshold.
func (a *RiskAssessment) AlertWorthy(threshold float64) bool {
	return a.RiskScore >= threshold
}
