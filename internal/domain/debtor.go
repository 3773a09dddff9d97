package domain

import "time"

// DebtorBankAccount is the read model of the debtor's own bank account,
// fed by change notifications. Account CRUD itself lives outside this
// service.
type DebtorBankAccount struct {
	OwnerID    string    `json:"owner_id"`
	IBAN       string    `json:"iban"`
	Currency   string    `json:"currency,omitempty"`
	BankCode   string    `json:"bank_code,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Timezone   string    `json:"timezone,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Ready reports whether the account can be the source of a payment draft:
// IBAN, currency, bank code and the bank-side id must all be present.
func (a *DebtorBankAccount) Ready() bool {
	if a == nil {
		return false
	}

	return a.IBAN != "" && a.Currency != "" && a.BankCode != "" && a.ExternalID != ""
}

// Location resolves the debtor's timezone, falling back to UTC.
func (a *DebtorBankAccount) Location() *time.Location {
	if a == nil || a.Timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
