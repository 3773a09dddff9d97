package domain

import "time"

// Downstream event types.
const (
	EventTypeTransactionCompleted = "transaction.completed"
)

// TransactionPublishedEvent is the external representation of a finalized
// transaction sent to downstream subscribers.
type TransactionPublishedEvent struct {
	EventType         string     `json:"event_type"`
	TransactionID     string     `json:"transaction_id"`
	OwnerID           string     `json:"owner_id"`
	OwnerName         string     `json:"owner_name"`
	OwnerEmail        string     `json:"owner_email"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency"`
	BankCode          string     `json:"bank_code,omitempty"`
	ReconciliationKey string     `json:"reconciliation_key"`
	Reference         string     `json:"reference,omitempty"`
	Kind              string     `json:"kind"`
	State             string     `json:"state"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}
