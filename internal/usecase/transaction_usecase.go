package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// TransactionUseCase maintains the placeholder ledger transactions driven
// by invoice change notifications.
type TransactionUseCase struct {
	txManager    TransactionManager
	transactions TransactionRepository
	guard        *IdempotencyGuard
	idGen        IDGenerator
	logger       zerolog.Logger
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	txManager TransactionManager,
	transactions TransactionRepository,
	guard *IdempotencyGuard,
	idGen IDGenerator,
	logger zerolog.Logger,
) *TransactionUseCase {
	return &TransactionUseCase{
		txManager:    txManager,
		transactions: transactions,
		guard:        guard,
		idGen:        idGen,
		logger:       logger,
	}
}

// CreateFromInvoice creates (or refreshes) the placeholder transaction for
// a sent invoice. The idempotency mark and the mutation commit atomically;
// a stale notification leaves the store untouched. Returns nil when the
// notification was discarded as obsolete.
func (uc *TransactionUseCase) CreateFromInvoice(ctx context.Context, invoice domain.Invoice) (*domain.Transaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeInvoice, invoice.ID, invoice.OwnerID, invoice.ModifiedAt)
	if err != nil {
		return nil, err
	}

	if obsolete {
		uc.logger.Debug().
			Str("invoice_id", invoice.ID).
			Time("modified_at", invoice.ModifiedAt).
			Msg("discarding obsolete invoice notification")

		return nil, nil
	}

	t, err := uc.transactions.GetByInvoiceIDForUpdate(ctx, tx, invoice.OwnerID, invoice.ID)
	switch {
	case err == nil:
		if updateErr := uc.refresh(ctx, tx, t, invoice); updateErr != nil {
			return nil, updateErr
		}
	case errors.Is(err, domain.ErrTransactionNotFound):
		t, err = domain.NewInvoiceTransaction(
			uc.idGen.Generate(),
			invoice.OwnerID,
			invoice.Amount,
			invoice.Currency,
			invoice.Reference,
			invoice.InvoiceDetail(),
			time.Now(),
		)
		if err != nil {
			// A missing reconciliation key never resolves on retry.
			return nil, domain.NoRetry(err)
		}

		if err := uc.transactions.Create(ctx, tx, t); err != nil {
			return nil, err
		}

		uc.logger.Info().
			Str("transaction_id", t.ID).
			Str("invoice_id", invoice.ID).
			Str("reconciliation_key", t.ReconciliationKey).
			Msg("placeholder transaction created")
	default:
		return nil, err
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeInvoice, invoice.ID, invoice.OwnerID, invoice.ModifiedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return t, nil
}

// refresh carries later invoice edits onto a still-open placeholder. The
// reconciliation key is immutable and a submitted or settled transaction is
// left alone.
func (uc *TransactionUseCase) refresh(ctx context.Context, tx Transaction, t *domain.Transaction, invoice domain.Invoice) error {
	if t.State == domain.TransactionStateCompleted || t.ExternalID != "" {
		return nil
	}

	t.Amount = invoice.Amount
	if invoice.Currency != "" {
		t.Currency = invoice.Currency
	}
	t.Reference = invoice.Reference
	detail := invoice.InvoiceDetail()
	t.Detail = domain.TransactionDetail{
		Kind:    domain.TransactionKindInvoice,
		Invoice: &detail,
	}
	t.UpdatedAt = time.Now().UTC()

	return uc.transactions.Update(ctx, tx, t)
}

// DeleteForInvoice removes the placeholder when the originating invoice is
// withdrawn. A settled transaction is retained for audit; the mark is still
// committed so a stale resurrect attempt stays discarded.
func (uc *TransactionUseCase) DeleteForInvoice(ctx context.Context, ownerID, invoiceID string, publishedAt time.Time) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// The deleted resource reports no modification time of its own, so the
	// notification publish time stands in for it.
	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeInvoice, invoiceID, ownerID, publishedAt)
	if err != nil {
		return err
	}

	if obsolete {
		uc.logger.Debug().Str("invoice_id", invoiceID).Msg("discarding obsolete invoice deletion")
		return nil
	}

	t, err := uc.transactions.GetByInvoiceIDForUpdate(ctx, tx, ownerID, invoiceID)
	switch {
	case errors.Is(err, domain.ErrTransactionNotFound):
		// Nothing to delete; record the mark anyway.
	case err != nil:
		return err
	case t.Deletable():
		if err := uc.transactions.Delete(ctx, tx, t.ID); err != nil {
			return err
		}

		uc.logger.Info().
			Str("transaction_id", t.ID).
			Str("invoice_id", invoiceID).
			Msg("placeholder transaction deleted for withdrawn invoice")
	default:
		uc.logger.Warn().
			Str("transaction_id", t.ID).
			Str("invoice_id", invoiceID).
			Msg("invoice withdrawn after settlement, retaining transaction for audit")
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeInvoice, invoiceID, ownerID, publishedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Get retrieves a transaction by ID.
func (uc *TransactionUseCase) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.transactions.GetByID(ctx, id)
}

// List lists an owner's transactions.
func (uc *TransactionUseCase) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Transaction, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.transactions.List(ctx, ownerID, limit, offset)
}
