package tasks

import (
	"encoding/json"
	"time"

	"github.com/iho/payrec/internal/domain"
)

// Task kinds of the reconciliation pipeline.
const (
	KindTransactionCreate  = "transaction.create"
	KindTransactionDelete  = "transaction.delete"
	KindBeneficiarySync    = "beneficiary.sync"
	KindPaymentSchedule    = "payment.schedule"
	KindWebhookProcess     = "webhook.process"
	KindTransactionPublish = "transaction.publish"
)

// CreateTransactionPayload carries the invoice snapshot from the change
// notification.
type CreateTransactionPayload struct {
	Invoice domain.Invoice `json:"invoice"`
}

// DeleteTransactionPayload compensates a withdrawn invoice.
type DeleteTransactionPayload struct {
	OwnerID     string    `json:"owner_id"`
	InvoiceID   string    `json:"invoice_id"`
	PublishedAt time.Time `json:"published_at"`
}

// SyncBeneficiaryPayload registers and syncs the invoice's creditor
// account. InvoiceID lets the handler re-trigger payment scheduling once
// the sync lands.
type SyncBeneficiaryPayload struct {
	OwnerID   string `json:"owner_id"`
	InvoiceID string `json:"invoice_id"`
	IBAN      string `json:"iban"`
	BIC       string `json:"bic,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

// SchedulePaymentPayload retries the payment draft preconditions.
type SchedulePaymentPayload struct {
	OwnerID   string `json:"owner_id"`
	InvoiceID string `json:"invoice_id"`
}

// ProcessWebhookPayload carries the raw bank event envelope.
type ProcessWebhookPayload struct {
	Event json.RawMessage `json:"event"`
}

// PublishTransactionPayload identifies the finalized transaction to
// publish downstream.
type PublishTransactionPayload struct {
	TransactionID string `json:"transaction_id"`
}
