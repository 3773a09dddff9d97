// Package mocks provides in-memory test doubles for the usecase
// interfaces. Behavior can be overridden per test through the function
// fields.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// MockTransaction is a no-op database transaction.
type MockTransaction struct {
	Committed  bool
	RolledBack bool
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// MockTransactionManager hands out no-op transactions.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockIDGenerator returns sequential IDs.
type MockIDGenerator struct {
	mu           sync.Mutex
	n            int
	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	return "id-" + itoa(m.n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// MockTransactionRepository is an in-memory TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction

	CreateFunc func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error
	UpdateFunc func(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error
	DeleteFunc func(ctx context.Context, tx usecase.Transaction, id string) error
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{transactions: make(map[string]*domain.Transaction)}
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = t
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.transactions[id]; ok {
		return t, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRepository) GetByInvoiceID(ctx context.Context, ownerID, invoiceID string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.OwnerID == ownerID && t.Detail.Invoice != nil && t.Detail.Invoice.InvoiceID == invoiceID {
			return t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByInvoiceIDForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, invoiceID string) (*domain.Transaction, error) {
	return m.GetByInvoiceID(ctx, ownerID, invoiceID)
}

func (m *MockTransactionRepository) GetByReconciliationKey(ctx context.Context, key string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transactions {
		if t.ReconciliationKey == key {
			return t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx usecase.Transaction, t *domain.Transaction) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[t.ID] = t
	return nil
}

func (m *MockTransactionRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, id)
	return nil
}

func (m *MockTransactionRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

// Count returns the number of stored transactions.
func (m *MockTransactionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions)
}

// MockBeneficiaryRepository is an in-memory BeneficiaryRepository keyed by
// (owner, IBAN).
type MockBeneficiaryRepository struct {
	mu            sync.RWMutex
	beneficiaries map[string]*domain.BeneficiaryBankAccount

	CreateFunc func(ctx context.Context, b *domain.BeneficiaryBankAccount) error
}

func NewMockBeneficiaryRepository() *MockBeneficiaryRepository {
	return &MockBeneficiaryRepository{beneficiaries: make(map[string]*domain.BeneficiaryBankAccount)}
}

func benKey(ownerID, iban string) string {
	return ownerID + "|" + iban
}

func (m *MockBeneficiaryRepository) Create(ctx context.Context, b *domain.BeneficiaryBankAccount) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := benKey(b.OwnerID, b.IBAN)
	if _, ok := m.beneficiaries[key]; ok {
		return domain.ErrBeneficiaryExists
	}
	m.beneficiaries[key] = b
	return nil
}

func (m *MockBeneficiaryRepository) GetByOwnerAndIBAN(ctx context.Context, ownerID, iban string) (*domain.BeneficiaryBankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.beneficiaries[benKey(ownerID, iban)]; ok {
		return b, nil
	}
	return nil, domain.ErrBeneficiaryNotFound
}

func (m *MockBeneficiaryRepository) GetByOwnerAndIBANForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, iban string) (*domain.BeneficiaryBankAccount, error) {
	return m.GetByOwnerAndIBAN(ctx, ownerID, iban)
}

func (m *MockBeneficiaryRepository) Update(ctx context.Context, tx usecase.Transaction, b *domain.BeneficiaryBankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beneficiaries[benKey(b.OwnerID, b.IBAN)] = b
	return nil
}

func (m *MockBeneficiaryRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.BeneficiaryBankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.BeneficiaryBankAccount
	for _, b := range m.beneficiaries {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Count returns the number of stored beneficiaries.
func (m *MockBeneficiaryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.beneficiaries)
}

// MockDebtorAccountRepository is an in-memory DebtorAccountRepository.
type MockDebtorAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.DebtorBankAccount
}

func NewMockDebtorAccountRepository() *MockDebtorAccountRepository {
	return &MockDebtorAccountRepository{accounts: make(map[string]*domain.DebtorBankAccount)}
}

func (m *MockDebtorAccountRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.DebtorBankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[ownerID]; ok {
		return a, nil
	}
	return nil, domain.ErrDebtorAccountNotFound
}

func (m *MockDebtorAccountRepository) Upsert(ctx context.Context, tx usecase.Transaction, a *domain.DebtorBankAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.OwnerID] = a
	return nil
}

func (m *MockDebtorAccountRepository) Delete(ctx context.Context, tx usecase.Transaction, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, ownerID)
	return nil
}

// Seed stores an account directly.
func (m *MockDebtorAccountRepository) Seed(a *domain.DebtorBankAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.OwnerID] = a
}

// MockOwnerRepository is an in-memory OwnerRepository.
type MockOwnerRepository struct {
	mu     sync.RWMutex
	owners map[string]*domain.Owner
}

func NewMockOwnerRepository() *MockOwnerRepository {
	return &MockOwnerRepository{owners: make(map[string]*domain.Owner)}
}

func (m *MockOwnerRepository) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.owners[id]; ok {
		return o, nil
	}
	return nil, domain.ErrOwnerNotFound
}

func (m *MockOwnerRepository) Upsert(ctx context.Context, tx usecase.Transaction, o *domain.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
	return nil
}

// MockIdempotencyRepository is an in-memory IdempotencyRepository.
type MockIdempotencyRepository struct {
	mu    sync.RWMutex
	marks map[string]*domain.IdempotencyMark
}

func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{marks: make(map[string]*domain.IdempotencyMark)}
}

func markKey(resourceType, uniqueKey, ownerID string) string {
	return resourceType + "|" + uniqueKey + "|" + ownerID
}

func (m *MockIdempotencyRepository) Get(ctx context.Context, tx usecase.Transaction, resourceType, uniqueKey, ownerID string) (*domain.IdempotencyMark, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.marks[markKey(resourceType, uniqueKey, ownerID)], nil
}

func (m *MockIdempotencyRepository) Upsert(ctx context.Context, tx usecase.Transaction, mark *domain.IdempotencyMark) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks[markKey(mark.ResourceType, mark.UniqueKey, mark.OwnerID)] = mark
	return nil
}

// MockBankClient records calls against the banking API.
type MockBankClient struct {
	mu sync.Mutex

	GetTransactionFunc     func(ctx context.Context, id string) (*domain.BankTransaction, error)
	CreateCounterpartyFunc func(ctx context.Context, req domain.CounterpartyRequest) (string, error)
	CreatePaymentDraftFunc func(ctx context.Context, req domain.PaymentDraftRequest) (string, error)

	GetTransactionCalls     int
	CreateCounterpartyCalls int
	CreatePaymentDraftCalls int
	PaymentDraftRequests    []domain.PaymentDraftRequest
}

func NewMockBankClient() *MockBankClient {
	return &MockBankClient{}
}

func (m *MockBankClient) GetTransaction(ctx context.Context, id string) (*domain.BankTransaction, error) {
	m.mu.Lock()
	m.GetTransactionCalls++
	m.mu.Unlock()
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, id)
	}
	return nil, domain.ErrBankTransactionNotFound
}

func (m *MockBankClient) CreateCounterparty(ctx context.Context, req domain.CounterpartyRequest) (string, error) {
	m.mu.Lock()
	m.CreateCounterpartyCalls++
	m.mu.Unlock()
	if m.CreateCounterpartyFunc != nil {
		return m.CreateCounterpartyFunc(ctx, req)
	}
	return "cp-" + req.IBAN, nil
}

func (m *MockBankClient) CreatePaymentDraft(ctx context.Context, req domain.PaymentDraftRequest) (string, error) {
	m.mu.Lock()
	m.CreatePaymentDraftCalls++
	m.PaymentDraftRequests = append(m.PaymentDraftRequests, req)
	m.mu.Unlock()
	if m.CreatePaymentDraftFunc != nil {
		return m.CreatePaymentDraftFunc(ctx, req)
	}
	return "draft-" + req.ReconciliationKey, nil
}

// ScheduledTask records one Schedule call.
type ScheduledTask struct {
	Kind    string
	Payload any
	RunAt   time.Time
}

// MockTaskScheduler records scheduled tasks.
type MockTaskScheduler struct {
	mu    sync.Mutex
	Tasks []ScheduledTask
}

func NewMockTaskScheduler() *MockTaskScheduler {
	return &MockTaskScheduler{}
}

func (m *MockTaskScheduler) Schedule(ctx context.Context, kind string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, ScheduledTask{Kind: kind, Payload: payload})
	return nil
}

func (m *MockTaskScheduler) ScheduleAt(ctx context.Context, kind string, payload any, runAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tasks = append(m.Tasks, ScheduledTask{Kind: kind, Payload: payload, RunAt: runAt})
	return nil
}

// MockMessagePublisher records published messages.
type MockMessagePublisher struct {
	mu       sync.Mutex
	Messages map[string][][]byte

	PublishFunc func(topic string, payload []byte) error
}

func NewMockMessagePublisher() *MockMessagePublisher {
	return &MockMessagePublisher{Messages: make(map[string][][]byte)}
}

func (m *MockMessagePublisher) Publish(topic string, payload []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(topic, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

// Published returns the messages published to a topic.
func (m *MockMessagePublisher) Published(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Messages[topic]
}
