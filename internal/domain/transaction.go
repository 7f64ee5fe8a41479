package domain

import (
	"fmt"
	"time"
)

// PaymentMethod is the closed set of supported payment instruments.
type PaymentMethod string

const (
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPix        PaymentMethod = "PIX"
	PaymentTransfer   PaymentMethod = "TRANSFER"
)

// ParsePaymentMethod validates a payment method string.
// Unknown methods are rejected at the API boundary; the scoring
// engines assume a valid method.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentCreditCard, PaymentDebitCard, PaymentPix, PaymentTransfer:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("unknown payment method: %q", s)
	}
}

// Transaction represents an incoming transaction to be scored.
// Immutable once created; the scoring engines never mutate it.
type Transaction struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	Amount     float64   `json:"amount"`
	Merchant   string    `json:"merchant"`
	Timestamp  time.Time `json:"timestamp"`

	// Location and DeviceID are nullable. Absence selects the
	// default-risk branch in feature extraction, it is not an error.
	Location *string `json:"location,omitempty"`
	DeviceID *string `json:"deviceId,omitempty"`

	PaymentMethod PaymentMethod `json:"paymentMethod"`
}

// Hour returns the transaction's hour of day in [0,23].
func (t *Transaction) Hour() int {
	return t.Timestamp.Hour()
}

// AnalyzeRequest is the API request payload for transaction analysis.
type AnalyzeRequest struct {
	CustomerID    string    `json:"customerId"`
	Amount        float64   `json:"amount"`
	Merchant      string    `json:"merchant"`
	Timestamp     time.Time `json:"timestamp"`
	Location      *string   `json:"location,omitempty"`
	DeviceID      *string   `json:"deviceId,omitempty"`
	PaymentMethod string    `json:"paymentMethod"`
}

// Validate checks the request against the input contract. Malformed
// transactions are rejected here, before they reach the scoring
// pipeline.
func (r *AnalyzeRequest) Validate() error {
	if r.CustomerID == "" {
		return fmt.Errorf("customerId is required")
	}
	if r.Amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if r.Merchant == "" {
		return fmt.Errorf("merchant is required")
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if _, err := ParsePaymentMethod(r.PaymentMethod); err != nil {
		return err
	}
	return nil
}

// ToTransaction converts a validated request to a Transaction.
// The caller supplies the generated transaction ID.
func (r *AnalyzeRequest) ToTransaction(id string) *Transaction {
	method, _ := ParsePaymentMethod(r.PaymentMethod)
	return &Transaction{
		ID:            id,
		CustomerID:    r.CustomerID,
		Amount:        r.Amount,
		Merchant:      r.Merchant,
		Timestamp:     r.Timestamp,
		Location:      r.Location,
		DeviceID:      r.DeviceID,
		PaymentMethod: method,
	}
}
