// Package dto defines the API request and response shapes.
package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/taskqueue"
)

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID                string                   `json:"id"`
	OwnerID           string                   `json:"owner_id"`
	Amount            decimal.Decimal          `json:"amount"`
	Currency          string                   `json:"currency,omitempty"`
	BankCode          string                   `json:"bank_code,omitempty"`
	ExternalID        string                   `json:"external_id,omitempty"`
	ReconciliationKey string                   `json:"reconciliation_key"`
	Reference         string                   `json:"reference,omitempty"`
	Credit            bool                     `json:"credit"`
	State             string                   `json:"state"`
	Failure           bool                     `json:"failure"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	Detail            domain.TransactionDetail `json:"detail"`
	OriginEvents      []json.RawMessage        `json:"origin_events,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to a response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                t.ID,
		OwnerID:           t.OwnerID,
		Amount:            t.Amount,
		Currency:          t.Currency,
		BankCode:          t.BankCode,
		ExternalID:        t.ExternalID,
		ReconciliationKey: t.ReconciliationKey,
		Reference:         t.Reference,
		Credit:            t.Credit,
		State:             string(t.State),
		Failure:           t.Failure,
		CompletedAt:       t.CompletedAt,
		Detail:            t.Detail,
		OriginEvents:      t.OriginEvents,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(transactions []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(transactions))
	for i, t := range transactions {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// BeneficiaryResponse represents a beneficiary bank account in API
// responses.
type BeneficiaryResponse struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	IBAN        string            `json:"iban"`
	BIC         string            `json:"bic,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Country     string            `json:"country,omitempty"`
	ExternalIDs map[string]string `json:"external_ids,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// BeneficiaryFromDomain converts a domain beneficiary to a response.
func BeneficiaryFromDomain(b *domain.BeneficiaryBankAccount) *BeneficiaryResponse {
	return &BeneficiaryResponse{
		ID:          b.ID,
		OwnerID:     b.OwnerID,
		IBAN:        b.IBAN,
		BIC:         b.BIC,
		Currency:    b.Currency,
		Country:     b.Country,
		ExternalIDs: b.ExternalIDs,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// BeneficiariesFromDomain converts domain beneficiaries to responses.
func BeneficiariesFromDomain(beneficiaries []*domain.BeneficiaryBankAccount) []*BeneficiaryResponse {
	result := make([]*BeneficiaryResponse, len(beneficiaries))
	for i, b := range beneficiaries {
		result[i] = BeneficiaryFromDomain(b)
	}
	return result
}

// TaskStatsResponse reports queue counters.
type TaskStatsResponse struct {
	Pending int64 `json:"pending"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// TaskStatsFromDomain converts queue stats to a response.
func TaskStatsFromDomain(s taskqueue.Stats) TaskStatsResponse {
	return TaskStatsResponse{Pending: s.Pending, Done: s.Done, Failed: s.Failed}
}

// WebhookAcceptedResponse acknowledges a webhook delivery.
type WebhookAcceptedResponse struct {
	Status string `json:"status"`
}
