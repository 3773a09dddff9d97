package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionState is the lifecycle state of a ledger transaction.
type TransactionState string

const (
	TransactionStateCreated   TransactionState = "created"
	TransactionStateCompleted TransactionState = "completed"
)

// TransactionKind discriminates the document a transaction was created for.
type TransactionKind string

const (
	TransactionKindInvoice TransactionKind = "invoice"
	TransactionKindReceipt TransactionKind = "receipt"
	TransactionKindBill    TransactionKind = "bill"
)

// InvoiceDetail is the invoice-specific payload of a transaction.
type InvoiceDetail struct {
	InvoiceID      string     `json:"invoice_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	VariableSymbol string     `json:"variable_symbol,omitempty"`
	PaymentKey     string     `json:"payment_key,omitempty"`
	CreditorIBAN   string     `json:"creditor_iban,omitempty"`
	CreditorBIC    string     `json:"creditor_bic,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	PaymentOrdered bool       `json:"payment_ordered"`
}

// ReceiptDetail is the receipt-specific payload of a transaction.
type ReceiptDetail struct {
	ReceiptID     string     `json:"receipt_id"`
	ReceiptNumber string     `json:"receipt_number"`
	IssuedAt      *time.Time `json:"issued_at,omitempty"`
}

// BillDetail is the bill-specific payload of a transaction.
type BillDetail struct {
	BillID       string `json:"bill_id"`
	BillNumber   string `json:"bill_number"`
	SupplierName string `json:"supplier_name,omitempty"`
}

// TransactionDetail is a tagged union over the document kinds. Exactly one
// of the pointers matching Kind is set.
type TransactionDetail struct {
	Kind    TransactionKind `json:"kind"`
	Invoice *InvoiceDetail  `json:"invoice,omitempty"`
	Receipt *ReceiptDetail  `json:"receipt,omitempty"`
	Bill    *BillDetail     `json:"bill,omitempty"`
}

// Transaction is the placeholder ledger entry created when an invoice is
// sent, later matched and closed by a bank-pushed event. Once completed it
// is retained forever for audit.
type Transaction struct {
	ID                string
	OwnerID           string
	Amount            decimal.Decimal
	Currency          string
	BankCode          string
	ExternalID        string
	ReconciliationKey string
	Reference         string
	Credit            bool
	State             TransactionState
	Failure           bool
	CompletedAt       *time.Time
	OriginEvents      []json.RawMessage
	Detail            TransactionDetail
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReconciliationKeyFor picks the external matching token: variable symbol
// first, then payment key, then invoice number. All empty is a permanent
// validation failure.
func ReconciliationKeyFor(variableSymbol, paymentKey, invoiceNumber string) (string, error) {
	switch {
	case variableSymbol != "":
		return variableSymbol, nil
	case paymentKey != "":
		return paymentKey, nil
	case invoiceNumber != "":
		return invoiceNumber, nil
	}

	return "", ErrMissingReconciliationKey
}

// NewInvoiceTransaction creates the placeholder transaction for a sent
// invoice. The reconciliation key is fixed at creation and never changes.
func NewInvoiceTransaction(id, ownerID string, amount decimal.Decimal, currency, reference string, detail InvoiceDetail, now time.Time) (*Transaction, error) {
	key, err := ReconciliationKeyFor(detail.VariableSymbol, detail.PaymentKey, detail.InvoiceNumber)
	if err != nil {
		return nil, err
	}

	now = now.UTC()

	return &Transaction{
		ID:                id,
		OwnerID:           ownerID,
		Amount:            amount,
		Currency:          currency,
		ReconciliationKey: key,
		Reference:         reference,
		State:             TransactionStateCreated,
		Failure:           false,
		Detail: TransactionDetail{
			Kind:    TransactionKindInvoice,
			Invoice: &detail,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Complete moves the transaction to its terminal state. The caller must
// have passed the idempotency guard first; re-applying an already applied
// timestamp never reaches this method.
func (t *Transaction) Complete(at time.Time, originEvent json.RawMessage) error {
	if t.State == TransactionStateCompleted || t.CompletedAt != nil {
		return ErrTransactionCompleted
	}

	if t.Failure {
		return ErrTransactionFailed
	}

	completedAt := at.UTC()
	t.State = TransactionStateCompleted
	t.CompletedAt = &completedAt
	t.AppendOriginEvent(originEvent)
	t.UpdatedAt = completedAt

	return nil
}

// Deletable reports whether the transaction may still be removed by a
// compensating step. A settled record is never removed.
func (t *Transaction) Deletable() bool {
	return t.State != TransactionStateCompleted && t.CompletedAt == nil
}

// Incomplete reports whether the completion write is not yet visible.
// Publishing downstream is gated on this predicate.
func (t *Transaction) Incomplete() bool {
	return t.State != TransactionStateCompleted || t.CompletedAt == nil
}

// MarkFailed flags the transaction so completion is refused from now on.
func (t *Transaction) MarkFailed(now time.Time) {
	t.Failure = true
	t.UpdatedAt = now.UTC()
}

// AppendOriginEvent adds a raw bank event to the append-only audit trail.
func (t *Transaction) AppendOriginEvent(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	t.OriginEvents = append(t.OriginEvents, raw)
}
