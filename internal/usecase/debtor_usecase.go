package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// DebtorAccountUseCase maintains the debtor bank account read model from
// change notifications. Account CRUD itself happens upstream.
type DebtorAccountUseCase struct {
	txManager TransactionManager
	debtors   DebtorAccountRepository
	guard     *IdempotencyGuard
	logger    zerolog.Logger
}

// NewDebtorAccountUseCase creates a new DebtorAccountUseCase.
func NewDebtorAccountUseCase(
	txManager TransactionManager,
	debtors DebtorAccountRepository,
	guard *IdempotencyGuard,
	logger zerolog.Logger,
) *DebtorAccountUseCase {
	return &DebtorAccountUseCase{
		txManager: txManager,
		debtors:   debtors,
		guard:     guard,
		logger:    logger,
	}
}

// ApplyChange applies one debtor-account change notification under the
// idempotency guard.
func (uc *DebtorAccountUseCase) ApplyChange(ctx context.Context, n domain.ChangeNotification) error {
	modifiedAt := n.ModificationTime()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeDebtorAccount, n.Key(), n.OwnerID, modifiedAt)
	if err != nil {
		return err
	}

	if obsolete {
		uc.logger.Debug().
			Str("owner_id", n.OwnerID).
			Msg("discarding obsolete debtor account notification")

		return nil
	}

	if n.IsDelete {
		if err := uc.debtors.Delete(ctx, tx, n.OwnerID); err != nil {
			return err
		}
	} else {
		var account domain.DebtorBankAccount
		if err := json.Unmarshal(n.Payload, &account); err != nil {
			return domain.NoRetry(fmt.Errorf("malformed debtor account payload: %w", err))
		}

		account.OwnerID = n.OwnerID
		account.IBAN = domain.NormalizeIBAN(account.IBAN)
		account.UpdatedAt = modifiedAt

		if err := uc.debtors.Upsert(ctx, tx, &account); err != nil {
			return err
		}
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeDebtorAccount, n.Key(), n.OwnerID, modifiedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByOwner returns the debtor's account read model.
func (uc *DebtorAccountUseCase) GetByOwner(ctx context.Context, ownerID string) (*domain.DebtorBankAccount, error) {
	return uc.debtors.GetByOwner(ctx, ownerID)
}
