package mlmodel

import (
	"time"

	"fraudsentry/internal/models"
)

// FeatureCount is the fixed length of the feature vector. Training and
// serving share this extractor; the model artifact must carry exactly
// this many weights.
const FeatureCount = 12

// FeatureNames lists the vector positions in order, matching the
// training pipeline.
var FeatureNames = []string{
	"amount", "hour_of_day", "is_weekend", "payment_risk",
	"transaction_type_risk", "category_risk", "is_cross_border",
	"merchant_high_risk", "transaction_high_risk", "has_device_info",
	"has_ip_info", "amount_bracket",
}

var paymentRisk = map[string]float64{
	models.PaymentMethodCreditCard:   0.2,
	models.PaymentMethodDebitCard:    0.3,
	models.PaymentMethodPrepaidCard:  0.8,
	models.PaymentMethodBankTransfer: 0.1,
	models.PaymentMethodCash:         0.5,
}

var transactionTypeRisk = map[string]float64{
	models.TransactionTypePurchase:   0.2,
	models.TransactionTypeWithdrawal: 0.4,
	models.TransactionTypeTransfer:   0.6,
	models.TransactionTypeRefund:     0.5,
}

var categoryRisk = map[string]float64{
	"Food & Beverage": 0.1,
	"Retail":          0.2,
	"E-commerce":      0.3,
	"Electronics":     0.4,
	"Jewelry":         0.5,
	"Money Transfer":  0.7,
	"ATM":             0.6,
	"Gambling":        0.9,
}

var featureHighRiskCountries = map[string]bool{
	"XX": true,
	"YY": true,
	"ZZ": true,
}

// Features transforms a transaction into the fixed-order numeric feature
// vector. Deterministic given the transaction: time-derived features come
// from the transaction's own timestamp, never the wall clock, so the same
// transaction always yields the same vector.
func Features(tx *models.Transaction) []float64 {
	f := make([]float64, 0, FeatureCount)

	f = append(f, tx.Amount)
	f = append(f, float64(tx.Timestamp.Hour()))
	f = append(f, boolFeature(tx.Timestamp.Weekday() == time.Saturday || tx.Timestamp.Weekday() == time.Sunday))
	f = append(f, lookupOrNeutral(paymentRisk, tx.PaymentMethod))
	f = append(f, lookupOrNeutral(transactionTypeRisk, tx.TransactionType))
	f = append(f, lookupOrNeutral(categoryRisk, tx.MerchantCategory))
	f = append(f, boolFeature(tx.CrossBorder()))
	f = append(f, boolFeature(featureHighRiskCountries[tx.MerchantCountry]))
	f = append(f, boolFeature(featureHighRiskCountries[tx.TransactionCountry]))
	f = append(f, boolFeature(tx.DeviceID != ""))
	f = append(f, boolFeature(tx.IPAddress != ""))
	f = append(f, amountBracket(tx.Amount))

	return f
}

func amountBracket(amount float64) float64 {
	switch {
	case amount > 10000:
		return 4
	case amount > 5000:
		return 3
	case amount > 1000:
		return 2
	case amount > 100:
		return 1
	default:
		return 0
	}
}

func lookupOrNeutral(m map[string]float64, key string) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return 0.5
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
