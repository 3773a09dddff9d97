package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// WebhookUseCase converts bank-pushed events into transaction state
// transitions, re-validated against the bank's authoritative view.
type WebhookUseCase struct {
	txManager    TransactionManager
	transactions TransactionRepository
	guard        *IdempotencyGuard
	bank         BankClient
	logger       zerolog.Logger
}

// NewWebhookUseCase creates a new WebhookUseCase.
func NewWebhookUseCase(
	txManager TransactionManager,
	transactions TransactionRepository,
	guard *IdempotencyGuard,
	bank BankClient,
	logger zerolog.Logger,
) *WebhookUseCase {
	return &WebhookUseCase{
		txManager:    txManager,
		transactions: transactions,
		guard:        guard,
		bank:         bank,
		logger:       logger,
	}
}

// ProcessEvent handles one raw webhook envelope. It returns the mutated
// transaction when a completion was applied, so a chained publish task can
// be gated on it, and nil when the event was dropped or was a no-op.
//
// A bank-side lookup miss is retryable (eventual consistency lag); a state
// claim that disagrees with the bank's authoritative view is dropped with
// no mutation, since retrying would not resolve the mismatch.
func (uc *WebhookUseCase) ProcessEvent(ctx context.Context, raw json.RawMessage) (*domain.Transaction, error) {
	var event domain.BankEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("malformed bank event: %w", err))
	}

	switch event.Event {
	case domain.BankEventTransactionCreated:
		return uc.handleCreated(ctx, event, raw)
	case domain.BankEventTransactionStateChanged:
		return uc.handleStateChanged(ctx, event, raw)
	default:
		uc.logger.Warn().
			Str("event", event.Event).
			Msg("unrecognized bank event, dropping")

		return nil, nil
	}
}

// handleCreated links the bank-side transaction to the local placeholder
// and records the raw event in the audit trail. Redeliveries are dropped
// under the guard so the trail stays append-once per event.
func (uc *WebhookUseCase) handleCreated(ctx context.Context, event domain.BankEvent, raw json.RawMessage) (*domain.Transaction, error) {
	bankTx, err := uc.fetchAuthoritative(ctx, event.Data.ID)
	if err != nil {
		return nil, err
	}

	local, err := uc.transactions.GetByReconciliationKey(ctx, bankTx.ReconciliationKey)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		uc.logger.Warn().
			Str("bank_transaction_id", bankTx.ID).
			Str("reconciliation_key", bankTx.ReconciliationKey).
			Msg("no placeholder for bank transaction, dropping")

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Created and state-changed events for the same bank transaction are
	// marked under distinct keys so they cannot obsolete each other.
	markKey := event.Data.ID + ":created"

	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeBankEvent, markKey, local.OwnerID, event.Timestamp)
	if err != nil {
		return nil, err
	}

	if obsolete {
		uc.logger.Debug().
			Str("bank_transaction_id", bankTx.ID).
			Msg("bank link already recorded, dropping redelivery")

		return nil, nil
	}

	locked, err := uc.transactions.GetByIDForUpdate(ctx, tx, local.ID)
	if err != nil {
		return nil, err
	}

	locked.AppendOriginEvent(raw)
	if locked.ExternalID == "" {
		locked.ExternalID = bankTx.ID
	}

	if err := uc.transactions.Update(ctx, tx, locked); err != nil {
		return nil, err
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeBankEvent, markKey, local.OwnerID, event.Timestamp); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return locked, nil
}

func (uc *WebhookUseCase) handleStateChanged(ctx context.Context, event domain.BankEvent, raw json.RawMessage) (*domain.Transaction, error) {
	bankTx, err := uc.fetchAuthoritative(ctx, event.Data.ID)
	if err != nil {
		return nil, err
	}

	if bankTx.State != event.Data.NewState {
		uc.logger.Warn().
			Str("bank_transaction_id", bankTx.ID).
			Str("claimed_state", event.Data.NewState).
			Str("authoritative_state", bankTx.State).
			Msg("webhook state disagrees with bank, dropping")

		return nil, nil
	}

	if event.Data.NewState != domain.BankTransactionStateCompleted {
		uc.logger.Debug().
			Str("bank_transaction_id", bankTx.ID).
			Str("new_state", event.Data.NewState).
			Msg("non-terminal state change, nothing to apply")

		return nil, nil
	}

	local, err := uc.transactions.GetByReconciliationKey(ctx, bankTx.ReconciliationKey)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		// The invoice may have been withdrawn before completion; the
		// compensating delete makes this a no-op.
		uc.logger.Warn().
			Str("bank_transaction_id", bankTx.ID).
			Str("reconciliation_key", bankTx.ReconciliationKey).
			Msg("completion event without local transaction, dropping")

		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeBankEvent, event.Data.ID, local.OwnerID, event.Timestamp)
	if err != nil {
		return nil, err
	}

	if obsolete {
		uc.logger.Debug().
			Str("bank_transaction_id", event.Data.ID).
			Time("timestamp", event.Timestamp).
			Msg("completion already applied")

		// The previous delivery may have crashed between committing the
		// completion and scheduling its continuation. Hand the settled row
		// back so the chained publish gets another chance to enqueue.
		if !local.Incomplete() {
			return local, nil
		}

		return nil, nil
	}

	locked, err := uc.transactions.GetByIDForUpdate(ctx, tx, local.ID)
	if err != nil {
		return nil, err
	}

	if !locked.Incomplete() || locked.Failure {
		uc.logger.Debug().
			Str("transaction_id", locked.ID).
			Bool("failure", locked.Failure).
			Msg("transaction not eligible for completion")

		return nil, nil
	}

	if err := locked.Complete(event.Timestamp, raw); err != nil {
		// Guarded above; treat a lost race as a no-op.
		uc.logger.Debug().Err(err).Str("transaction_id", locked.ID).Msg("completion refused")
		return nil, nil
	}

	if err := uc.transactions.Update(ctx, tx, locked); err != nil {
		return nil, err
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeBankEvent, event.Data.ID, local.OwnerID, event.Timestamp); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("transaction_id", locked.ID).
		Str("bank_transaction_id", bankTx.ID).
		Msg("transaction completed from bank event")

	return locked, nil
}

// fetchAuthoritative loads the bank's view of the transaction. A miss is
// left retryable: the bank's read side can lag its own webhook push.
func (uc *WebhookUseCase) fetchAuthoritative(ctx context.Context, id string) (*domain.BankTransaction, error) {
	bankTx, err := uc.bank.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching authoritative bank transaction %s: %w", id, err)
	}

	return bankTx, nil
}
