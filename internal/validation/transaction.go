// Package validation checks inbound transactions before they enter the
// pipeline. A rejected transaction creates no partial state.
package validation

import (
	"errors"
	"fmt"

	"fraudsentry/internal/models"
)

// ErrValidation is the root of all transaction validation failures.
var ErrValidation = errors.New("invalid transaction")

var validTransactionTypes = map[string]bool{
	models.TransactionTypePurchase:   true,
	models.TransactionTypeWithdrawal: true,
	models.TransactionTypeTransfer:   true,
	models.TransactionTypeRefund:     true,
}

// ValidateTransaction checks the required fields of an inbound
// transaction. Optional fields (device, IP, email, city) are allowed to
// be empty; their absence is a scoring signal, not an input error.
func ValidateTransaction(tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: missing body", ErrValidation)
	}
	if tx.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !validTransactionTypes[tx.TransactionType] {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, tx.TransactionType)
	}
	if tx.MerchantName == "" {
		return fmt.Errorf("%w: merchant name is required", ErrValidation)
	}
	if tx.MerchantCategory == "" {
		return fmt.Errorf("%w: merchant category is required", ErrValidation)
	}
	if len(tx.MerchantCountry) != 2 {
		return fmt.Errorf("%w: merchant country must be a 2-letter ISO code", ErrValidation)
	}
	if tx.CustomerID == "" {
		return fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if tx.PaymentMethod == "" {
		return fmt.Errorf("%w: payment method is required", ErrValidation)
	}
	if len(tx.TransactionCountry) != 2 {
		return fmt.Errorf("%w: transaction country must be a 2-letter ISO code", ErrValidation)
	}
	if tx.CardLastFour != "" && !isFourDigits(tx.CardLastFour) {
		return fmt.Errorf("%w: card last four must be 4 digits", ErrValidation)
	}
	return nil
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
