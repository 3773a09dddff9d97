package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
	"github.com/iho/payrec/internal/usecase/mocks"
)

type publisherFixture struct {
	uc           *usecase.PublisherUseCase
	transactions *mocks.MockTransactionRepository
	owners       *mocks.MockOwnerRepository
	transport    *mocks.MockMessagePublisher
}

func newPublisherFixture() *publisherFixture {
	transactions := mocks.NewMockTransactionRepository()
	owners := mocks.NewMockOwnerRepository()
	transport := mocks.NewMockMessagePublisher()

	uc := usecase.NewPublisherUseCase(
		transactions,
		owners,
		transport,
		"transactions.completed",
		zerolog.Nop(),
	)

	return &publisherFixture{uc: uc, transactions: transactions, owners: owners, transport: transport}
}

func (f *publisherFixture) seedCompleted(t *testing.T, owner *domain.Owner) *domain.Transaction {
	t.Helper()
	ctx := context.Background()

	tx, err := domain.NewInvoiceTransaction(
		"tx-1",
		owner.ID,
		decimal.NewFromInt(100),
		"EUR",
		"invoice 2026-0042",
		domain.InvoiceDetail{InvoiceID: "inv-1", InvoiceNumber: "2026-0042", VariableSymbol: "VS123"},
		time.Now(),
	)
	if err != nil {
		t.Fatalf("seeding transaction: %v", err)
	}

	if err := tx.Complete(time.Now(), nil); err != nil {
		t.Fatalf("completing transaction: %v", err)
	}

	if err := f.transactions.Create(ctx, nil, tx); err != nil {
		t.Fatalf("storing transaction: %v", err)
	}

	if err := f.owners.Upsert(ctx, nil, owner); err != nil {
		t.Fatalf("storing owner: %v", err)
	}

	return tx
}

func TestPublish_SendsCompletedTransaction(t *testing.T) {
	f := newPublisherFixture()
	f.seedCompleted(t, &domain.Owner{ID: "owner-1", Name: "Acme s.r.o.", Email: "billing@acme.example"})

	if err := f.uc.Publish(context.Background(), "tx-1"); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	messages := f.transport.Published("transactions.completed")
	if len(messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(messages))
	}

	var event domain.TransactionPublishedEvent
	if err := json.Unmarshal(messages[0], &event); err != nil {
		t.Fatalf("decoding published event: %v", err)
	}

	if event.EventType != domain.EventTypeTransactionCompleted {
		t.Errorf("event type = %q", event.EventType)
	}

	if event.TransactionID != "tx-1" || event.OwnerEmail != "billing@acme.example" {
		t.Errorf("event fields wrong: %+v", event)
	}

	if event.ReconciliationKey != "VS123" {
		t.Errorf("reconciliation key = %q, want VS123", event.ReconciliationKey)
	}
}

func TestPublish_MissingTransactionIsPermanent(t *testing.T) {
	f := newPublisherFixture()

	err := f.uc.Publish(context.Background(), "gone")
	if err == nil {
		t.Fatal("expected an error")
	}

	if !domain.IsNoRetry(err) {
		t.Errorf("vanished transaction should not be retried: %v", err)
	}
}

func TestPublish_IncompleteOwnerIdentityIsPermanent(t *testing.T) {
	f := newPublisherFixture()
	f.seedCompleted(t, &domain.Owner{ID: "owner-1", Name: "Acme s.r.o."})

	err := f.uc.Publish(context.Background(), "tx-1")
	if err == nil {
		t.Fatal("expected an error")
	}

	if !domain.IsNoRetry(err) {
		t.Errorf("missing owner email should not be retried: %v", err)
	}

	if len(f.transport.Published("transactions.completed")) != 0 {
		t.Error("message published despite invalid owner identity")
	}
}

func TestPublish_TransportFailureIsRetryable(t *testing.T) {
	f := newPublisherFixture()
	f.seedCompleted(t, &domain.Owner{ID: "owner-1", Name: "Acme s.r.o.", Email: "billing@acme.example"})

	f.transport.PublishFunc = func(topic string, payload []byte) error {
		return errors.New("broker unavailable")
	}

	err := f.uc.Publish(context.Background(), "tx-1")
	if err == nil {
		t.Fatal("expected an error")
	}

	if domain.IsNoRetry(err) {
		t.Errorf("transport failure must stay retryable: %v", err)
	}
}
