package domain

import "time"

// Resource types guarded by idempotency marks.
const (
	ResourceTypeInvoice       = "invoice"
	ResourceTypeDebtorAccount = "debtor_account"
	ResourceTypeOwner         = "owner"
	ResourceTypeBankEvent     = "bank_event"
)

// IdempotencyMark records the last applied modification time for a logical
// resource. Marks are created on first acceptance and updated, never
// deleted.
type IdempotencyMark struct {
	ResourceType string
	UniqueKey    string
	OwnerID      string
	ModifiedAt   time.Time
}

// Obsoletes reports whether an incoming modification time is stale. Equal
// timestamps are obsolete once the first was applied: comparison is >=.
func (m *IdempotencyMark) Obsoletes(incoming time.Time) bool {
	return !m.ModifiedAt.Before(incoming)
}
