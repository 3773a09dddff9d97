package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the snapshot of the upstream invoice resource carried in a
// change notification payload.
type Invoice struct {
	ID             string          `json:"id"`
	OwnerID        string          `json:"owner_id"`
	Number         string          `json:"number"`
	VariableSymbol string          `json:"variable_symbol,omitempty"`
	PaymentKey     string          `json:"payment_key,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency,omitempty"`
	Reference      string          `json:"reference,omitempty"`
	CreditorIBAN   string          `json:"creditor_iban,omitempty"`
	CreditorBIC    string          `json:"creditor_bic,omitempty"`
	DueDate        *time.Time      `json:"due_date,omitempty"`
	Sent           bool            `json:"sent"`
	PaymentOrdered bool            `json:"payment_ordered"`
	ModifiedAt     time.Time       `json:"modified_at"`
}

// InvoiceDetail derives the transaction detail payload from the invoice.
func (i *Invoice) InvoiceDetail() InvoiceDetail {
	return InvoiceDetail{
		InvoiceID:      i.ID,
		InvoiceNumber:  i.Number,
		VariableSymbol: i.VariableSymbol,
		PaymentKey:     i.PaymentKey,
		CreditorIBAN:   i.CreditorIBAN,
		CreditorBIC:    i.CreditorBIC,
		DueDate:        i.DueDate,
		PaymentOrdered: i.PaymentOrdered,
	}
}

// ChangeNotification is a pub/sub message announcing that an upstream
// resource changed. The payload is the full resource JSON; it is absent
// for deletions.
type ChangeNotification struct {
	ResourceType string          `json:"resource_type"`
	UniqueKey    []string        `json:"unique_key"`
	OwnerID      string          `json:"owner_id"`
	IsDelete     bool            `json:"is_delete"`
	PublishedAt  time.Time       `json:"published_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// Key returns the last element of the unique-key path, the resource id.
func (n *ChangeNotification) Key() string {
	if len(n.UniqueKey) == 0 {
		return ""
	}

	return n.UniqueKey[len(n.UniqueKey)-1]
}

// ModificationTime extracts the resource's own modification time from the
// payload. A deleted resource reports none, so the notification publish
// time stands in for it.
func (n *ChangeNotification) ModificationTime() time.Time {
	if n.IsDelete || len(n.Payload) == 0 {
		return n.PublishedAt
	}

	var stamped struct {
		ModifiedAt time.Time `json:"modified_at"`
	}
	if err := json.Unmarshal(n.Payload, &stamped); err != nil || stamped.ModifiedAt.IsZero() {
		return n.PublishedAt
	}

	return stamped.ModifiedAt
}
