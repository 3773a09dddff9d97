package domain

import "time"

// BeneficiaryBankAccount is a payee's bank account registered as a
// counterparty with the debtor's banking provider. There is at most one
// record per (owner, IBAN), and at most one external counterparty id per
// bank code, set exactly once.
type BeneficiaryBankAccount struct {
	ID          string
	OwnerID     string
	IBAN        string
	BIC         string
	Currency    string
	Country     string
	ExternalIDs map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExternalID returns the counterparty id registered for bankCode, if any.
func (b *BeneficiaryBankAccount) ExternalID(bankCode string) (string, bool) {
	id, ok := b.ExternalIDs[bankCode]
	return id, ok
}

// SetExternalID stores the counterparty id returned by the bank. The id is
// write-once per bank code.
func (b *BeneficiaryBankAccount) SetExternalID(bankCode, externalID string, now time.Time) error {
	if b.ExternalIDs == nil {
		b.ExternalIDs = make(map[string]string)
	}

	if _, ok := b.ExternalIDs[bankCode]; ok {
		return ErrCounterpartySet
	}

	b.ExternalIDs[bankCode] = externalID
	b.UpdatedAt = now.UTC()

	return nil
}
