package usecase

import (
	"context"
	"time"

	"github.com/iho/payrec/internal/domain"
)

// TransactionRepository defines data access for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, t *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	GetByInvoiceID(ctx context.Context, ownerID, invoiceID string) (*domain.Transaction, error)
	GetByInvoiceIDForUpdate(ctx context.Context, tx Transaction, ownerID, invoiceID string) (*domain.Transaction, error)
	GetByReconciliationKey(ctx context.Context, key string) (*domain.Transaction, error)
	Update(ctx context.Context, tx Transaction, t *domain.Transaction) error
	Delete(ctx context.Context, tx Transaction, id string) error
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Transaction, error)
}

// BeneficiaryRepository defines data access for beneficiary bank accounts.
type BeneficiaryRepository interface {
	Create(ctx context.Context, b *domain.BeneficiaryBankAccount) error
	GetByOwnerAndIBAN(ctx context.Context, ownerID, iban string) (*domain.BeneficiaryBankAccount, error)
	GetByOwnerAndIBANForUpdate(ctx context.Context, tx Transaction, ownerID, iban string) (*domain.BeneficiaryBankAccount, error)
	Update(ctx context.Context, tx Transaction, b *domain.BeneficiaryBankAccount) error
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.BeneficiaryBankAccount, error)
}

// DebtorAccountRepository defines data access for the debtor account read
// model.
type DebtorAccountRepository interface {
	GetByOwner(ctx context.Context, ownerID string) (*domain.DebtorBankAccount, error)
	Upsert(ctx context.Context, tx Transaction, a *domain.DebtorBankAccount) error
	Delete(ctx context.Context, tx Transaction, ownerID string) error
}

// OwnerRepository defines data access for owner profiles.
type OwnerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Owner, error)
	Upsert(ctx context.Context, tx Transaction, o *domain.Owner) error
}

// IdempotencyRepository defines data access for idempotency marks. Get
// returns (nil, nil) when no mark is stored yet.
type IdempotencyRepository interface {
	Get(ctx context.Context, tx Transaction, resourceType, uniqueKey, ownerID string) (*domain.IdempotencyMark, error)
	Upsert(ctx context.Context, tx Transaction, mark *domain.IdempotencyMark) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// BankClient talks to the third-party banking API.
type BankClient interface {
	GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error)
	CreateCounterparty(ctx context.Context, req domain.CounterpartyRequest) (string, error)
	CreatePaymentDraft(ctx context.Context, req domain.PaymentDraftRequest) (string, error)
}

// TaskScheduler enqueues follow-on work on the durable task substrate.
type TaskScheduler interface {
	Schedule(ctx context.Context, kind string, payload any) error
	ScheduleAt(ctx context.Context, kind string, payload any, runAt time.Time) error
}

// MessagePublisher publishes a serialized message to a topic.
type MessagePublisher interface {
	Publish(topic string, payload []byte) error
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore deduplicates HTTP deliveries by replaying the response
// stored for a key that already finished.
type IdempotencyStore interface {
	// CheckAndSet claims the key for the current request. It reports
	// replay=true, with the stored response, when the key already
	// finished; an in-flight or fresh key proceeds normally.
	CheckAndSet(ctx context.Context, key string, ttl time.Duration) (replay bool, response []byte, err error)
	// Update stores the final response for the key.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
