package models

import (
	"time"
)

// Transaction types
const (
	TransactionTypePurchase   = "purchase"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
	TransactionTypeRefund     = "refund"
)

// Payment methods
const (
	PaymentMethodCreditCard   = "credit_card"
	PaymentMethodDebitCard    = "debit_card"
	PaymentMethodPrepaidCard  = "prepaid_card"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCash         = "cash"
)

// Transaction is the immutable input record for the scoring pipeline.
// It is created by the caller (or reconstructed from a stream message)
// and never mutated after creation.
type Transaction struct {
	ID              string  `gorm:"primarykey;size:64" json:"transaction_id"`
	Amount          float64 `gorm:"not null" json:"amount"`
	Currency        string  `gorm:"size:3;default:'USD'" json:"currency"`
	TransactionType string  `gorm:"size:50;not null" json:"transaction_type"`

	MerchantName     string `gorm:"size:255;not null" json:"merchant_name"`
	MerchantCategory string `gorm:"size:100;not null" json:"merchant_category"`
	MerchantCountry  string `gorm:"size:2;not null" json:"merchant_country"`

	CustomerID    string `gorm:"size:50;not null;index" json:"customer_id"`
	CustomerEmail string `gorm:"size:255" json:"customer_email,omitempty"`

	CardLastFour  string `gorm:"size:4" json:"card_last_four,omitempty"`
	PaymentMethod string `gorm:"size:50;not null" json:"payment_method"`

	TransactionCountry string `gorm:"size:2;not null" json:"transaction_country"`
	TransactionCity    string `gorm:"size:100" json:"transaction_city,omitempty"`
	IPAddress          string `gorm:"size:45" json:"ip_address,omitempty"`

	DeviceID   string `gorm:"size:100" json:"device_id,omitempty"`
	DeviceType string `gorm:"size:50" json:"device_type,omitempty"`

	Description string `gorm:"type:text" json:"description,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// CrossBorder reports whether the transaction country differs from the
// merchant country. Missing country codes carry no signal.
func (t *Transaction) CrossBorder() bool {
	return t.MerchantCountry != "" && t.TransactionCountry != "" &&
		t.MerchantCountry != t.TransactionCountry
}
