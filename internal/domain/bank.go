package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bank-pushed event discriminators.
const (
	BankEventTransactionCreated      = "TransactionCreated"
	BankEventTransactionStateChanged = "TransactionStateChanged"
)

// Bank-side transaction states.
const (
	BankTransactionStatePending   = "pending"
	BankTransactionStateCompleted = "completed"
	BankTransactionStateDeclined  = "declined"
)

// BankEvent is the envelope pushed by the bank to the webhook endpoint.
type BankEvent struct {
	Event     string        `json:"event"`
	Timestamp time.Time     `json:"timestamp"`
	Data      BankEventData `json:"data"`
}

// BankEventData carries the bank-side transaction id and, for state
// changes, the claimed transition.
type BankEventData struct {
	ID       string `json:"id"`
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
}

// BankTransaction is the bank's authoritative view of a transaction,
// fetched to re-validate webhook claims.
type BankTransaction struct {
	ID                string          `json:"id"`
	State             string          `json:"state"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ReconciliationKey string          `json:"reconciliation_key"`
	BookedAt          *time.Time      `json:"booked_at,omitempty"`
}

// CounterpartyRequest registers a beneficiary with the bank.
type CounterpartyRequest struct {
	IBAN     string `json:"iban"`
	BIC      string `json:"bic,omitempty"`
	Currency string `json:"currency"`
	Country  string `json:"country,omitempty"`
}

// PaymentDraftRequest submits a transfer instruction. A nil Date means
// execute immediately.
type PaymentDraftRequest struct {
	CounterpartyID    string          `json:"counterparty_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ReconciliationKey string          `json:"reconciliation_key"`
	Reference         string          `json:"reference,omitempty"`
	Date              *time.Time      `json:"date,omitempty"`
}
