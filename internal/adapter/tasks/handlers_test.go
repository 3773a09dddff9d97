package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/payrec/internal/adapter/tasks"
	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/taskqueue"
	"github.com/iho/payrec/internal/usecase"
	"github.com/iho/payrec/internal/usecase/mocks"
)

const (
	testIBAN  = "SK4711000000001987426062"
	testTopic = "transactions.completed"
)

// syncQueue runs scheduled tasks in-process so a whole pipeline can be
// driven to quiescence inside one test. scheduleErr, when set, can refuse
// an enqueue to simulate a queue outage.
type syncQueue struct {
	pending     []queuedTask
	scheduleErr func(kind string) error
}

type queuedTask struct {
	kind    string
	payload json.RawMessage
}

func (q *syncQueue) Schedule(ctx context.Context, kind string, payload any) error {
	if q.scheduleErr != nil {
		if err := q.scheduleErr(kind); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	q.pending = append(q.pending, queuedTask{kind: kind, payload: raw})
	return nil
}

func (q *syncQueue) ScheduleAt(ctx context.Context, kind string, payload any, runAt time.Time) error {
	return q.Schedule(ctx, kind, payload)
}

func (q *syncQueue) drain(t *testing.T, registry *taskqueue.Registry) {
	t.Helper()

	for i := 0; len(q.pending) > 0; i++ {
		if i > 100 {
			t.Fatal("pipeline did not quiesce")
		}

		next := q.pending[0]
		q.pending = q.pending[1:]

		handler, ok := registry.Handler(next.kind)
		if !ok {
			t.Fatalf("no handler registered for %s", next.kind)
		}

		if _, err := handler(context.Background(), next.payload); err != nil {
			t.Fatalf("task %s failed: %v", next.kind, err)
		}
	}
}

type pipelineFixture struct {
	queue         *syncQueue
	registry      *taskqueue.Registry
	transactions  *mocks.MockTransactionRepository
	beneficiaries *mocks.MockBeneficiaryRepository
	debtors       *mocks.MockDebtorAccountRepository
	owners        *mocks.MockOwnerRepository
	bank          *mocks.MockBankClient
	publisher     *mocks.MockMessagePublisher
}

func newPipelineFixture() *pipelineFixture {
	logger := zerolog.Nop()
	txManager := mocks.NewMockTransactionManager()
	transactions := mocks.NewMockTransactionRepository()
	beneficiaries := mocks.NewMockBeneficiaryRepository()
	debtors := mocks.NewMockDebtorAccountRepository()
	owners := mocks.NewMockOwnerRepository()
	bank := mocks.NewMockBankClient()
	publisher := mocks.NewMockMessagePublisher()
	guard := usecase.NewIdempotencyGuard(mocks.NewMockIdempotencyRepository())
	idGen := mocks.NewMockIDGenerator()
	queue := &syncQueue{}

	handlers := tasks.NewHandlers(
		usecase.NewTransactionUseCase(txManager, transactions, guard, idGen, logger),
		usecase.NewBeneficiaryUseCase(txManager, beneficiaries, debtors, bank, idGen, logger),
		usecase.NewPaymentUseCase(txManager, transactions, beneficiaries, debtors, bank, 0, logger),
		usecase.NewWebhookUseCase(txManager, transactions, guard, bank, logger),
		usecase.NewPublisherUseCase(transactions, owners, publisher, testTopic, logger),
		usecase.NewDebtorAccountUseCase(txManager, debtors, guard, logger),
		queue,
		logger,
	)

	registry := taskqueue.NewRegistry()
	handlers.Register(registry)

	return &pipelineFixture{
		queue:         queue,
		registry:      registry,
		transactions:  transactions,
		beneficiaries: beneficiaries,
		debtors:       debtors,
		owners:        owners,
		bank:          bank,
		publisher:     publisher,
	}
}

func (f *pipelineFixture) seedOwnerAndDebtor(t *testing.T) {
	t.Helper()

	if err := f.owners.Upsert(context.Background(), nil, &domain.Owner{
		ID:    "owner-1",
		Name:  "Acme s.r.o.",
		Email: "billing@acme.example",
	}); err != nil {
		t.Fatalf("seeding owner: %v", err)
	}

	f.debtors.Seed(&domain.DebtorBankAccount{
		OwnerID:    "owner-1",
		IBAN:       "DE89370400440532013000",
		Currency:   "EUR",
		BankCode:   "0800",
		ExternalID: "acc-1",
	})
}

func sentInvoice(modifiedAt time.Time) domain.Invoice {
	return domain.Invoice{
		ID:             "inv-1",
		OwnerID:        "owner-1",
		Number:         "2026-0042",
		VariableSymbol: "VS123",
		Amount:         decimal.NewFromInt(100),
		Currency:       "EUR",
		CreditorIBAN:   testIBAN,
		Sent:           true,
		PaymentOrdered: true,
		ModifiedAt:     modifiedAt,
	}
}

func completionEvent(t *testing.T, at time.Time) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(domain.BankEvent{
		Event:     domain.BankEventTransactionStateChanged,
		Timestamp: at,
		Data: domain.BankEventData{
			ID:       "bt-1",
			OldState: "pending",
			NewState: domain.BankTransactionStateCompleted,
		},
	})
	if err != nil {
		t.Fatalf("marshaling event: %v", err)
	}

	return raw
}

func TestPipeline_InvoiceToPaymentDraft(t *testing.T) {
	f := newPipelineFixture()
	f.seedOwnerAndDebtor(t)

	err := f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: sentInvoice(time.Now())})
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	tx, err := f.transactions.GetByInvoiceID(context.Background(), "owner-1", "inv-1")
	if err != nil {
		t.Fatalf("placeholder missing: %v", err)
	}
	if !tx.Incomplete() {
		t.Error("placeholder should not be complete yet")
	}

	if f.bank.CreateCounterpartyCalls != 1 {
		t.Errorf("counterparty registrations = %d, want 1", f.bank.CreateCounterpartyCalls)
	}

	if f.bank.CreatePaymentDraftCalls != 1 {
		t.Fatalf("payment drafts = %d, want 1", f.bank.CreatePaymentDraftCalls)
	}

	req := f.bank.PaymentDraftRequests[0]
	if req.CounterpartyID != "cp-"+testIBAN || req.ReconciliationKey != "VS123" {
		t.Errorf("unexpected draft request: %+v", req)
	}
}

func TestPipeline_WebhookCompletionPublishesDownstream(t *testing.T) {
	f := newPipelineFixture()
	f.seedOwnerAndDebtor(t)

	err := f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: sentInvoice(time.Now())})
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	// The bank confirms the draft settled.
	f.bank.GetTransactionFunc = func(ctx context.Context, id string) (*domain.BankTransaction, error) {
		return &domain.BankTransaction{
			ID:                id,
			State:             domain.BankTransactionStateCompleted,
			Amount:            decimal.NewFromInt(100),
			Currency:          "EUR",
			ReconciliationKey: "VS123",
		}, nil
	}

	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	err = f.queue.Schedule(context.Background(), tasks.KindWebhookProcess,
		tasks.ProcessWebhookPayload{Event: completionEvent(t, at)})
	if err != nil {
		t.Fatalf("scheduling webhook: %v", err)
	}
	f.queue.drain(t, f.registry)

	tx, err := f.transactions.GetByInvoiceID(context.Background(), "owner-1", "inv-1")
	if err != nil {
		t.Fatalf("transaction missing: %v", err)
	}
	if tx.Incomplete() {
		t.Fatal("transaction should be complete after the webhook")
	}
	if tx.CompletedAt == nil || !tx.CompletedAt.Equal(at) {
		t.Errorf("completed at = %v, want %v", tx.CompletedAt, at)
	}

	published := f.publisher.Published(testTopic)
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}

	var event domain.TransactionPublishedEvent
	if err := json.Unmarshal(published[0], &event); err != nil {
		t.Fatalf("decoding published event: %v", err)
	}
	if event.TransactionID != tx.ID {
		t.Errorf("published transaction %s, want %s", event.TransactionID, tx.ID)
	}
	if event.OwnerEmail != "billing@acme.example" {
		t.Errorf("published owner email %s", event.OwnerEmail)
	}
}

func TestPipeline_WebhookRedeliveryRecoversLostPublish(t *testing.T) {
	f := newPipelineFixture()
	f.seedOwnerAndDebtor(t)

	err := f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: sentInvoice(time.Now())})
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	f.bank.GetTransactionFunc = func(ctx context.Context, id string) (*domain.BankTransaction, error) {
		return &domain.BankTransaction{
			ID:                id,
			State:             domain.BankTransactionStateCompleted,
			Amount:            decimal.NewFromInt(100),
			Currency:          "EUR",
			ReconciliationKey: "VS123",
		}, nil
	}

	payload, err := json.Marshal(tasks.ProcessWebhookPayload{
		Event: completionEvent(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}

	handler, ok := f.registry.Handler(tasks.KindWebhookProcess)
	if !ok {
		t.Fatal("webhook handler not registered")
	}

	// The queue refuses the publish continuation: the completion commits
	// but its follow-up is lost, so the whole delivery must fail and be
	// retried.
	f.queue.scheduleErr = func(kind string) error {
		if kind == tasks.KindTransactionPublish {
			return errors.New("queue unavailable")
		}

		return nil
	}

	if _, err := handler(context.Background(), payload); err == nil {
		t.Fatal("expected the delivery to fail when the continuation cannot be enqueued")
	}

	tx, err := f.transactions.GetByInvoiceID(context.Background(), "owner-1", "inv-1")
	if err != nil {
		t.Fatalf("transaction missing: %v", err)
	}
	if tx.Incomplete() {
		t.Fatal("completion should have committed before the enqueue failure")
	}

	// Redelivery after the outage clears must still publish downstream.
	f.queue.scheduleErr = nil
	if _, err := handler(context.Background(), payload); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	f.queue.drain(t, f.registry)

	published := f.publisher.Published(testTopic)
	if len(published) != 1 {
		t.Fatalf("published %d messages, want 1", len(published))
	}
}

func TestPipeline_ObsoleteRedeliveryIsInert(t *testing.T) {
	f := newPipelineFixture()
	f.seedOwnerAndDebtor(t)

	invoice := sentInvoice(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC))
	err := f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: invoice})
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	drafts := f.bank.CreatePaymentDraftCalls

	// Same notification again, same modification time: the guard drops it.
	err = f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: invoice})
	if err != nil {
		t.Fatalf("rescheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	if f.transactions.Count() != 1 {
		t.Errorf("transactions = %d, want 1", f.transactions.Count())
	}
	if f.bank.CreatePaymentDraftCalls != drafts {
		t.Errorf("redelivery submitted another draft")
	}
}

func TestPipeline_InvoiceDeletionRemovesPlaceholder(t *testing.T) {
	f := newPipelineFixture()
	f.seedOwnerAndDebtor(t)

	created := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	err := f.queue.Schedule(context.Background(), tasks.KindTransactionCreate,
		tasks.CreateTransactionPayload{Invoice: sentInvoice(created)})
	if err != nil {
		t.Fatalf("scheduling: %v", err)
	}
	f.queue.drain(t, f.registry)

	err = f.queue.Schedule(context.Background(), tasks.KindTransactionDelete, tasks.DeleteTransactionPayload{
		OwnerID:     "owner-1",
		InvoiceID:   "inv-1",
		PublishedAt: created.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("scheduling delete: %v", err)
	}
	f.queue.drain(t, f.registry)

	if _, err := f.transactions.GetByInvoiceID(context.Background(), "owner-1", "inv-1"); err == nil {
		t.Error("placeholder should be gone after the deletion notification")
	}
}
