package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// OwnerUseCase maintains the owner profile read model from change
// notifications. The downstream publisher reads it for the identity
// fields on outbound messages.
type OwnerUseCase struct {
	txManager TransactionManager
	owners    OwnerRepository
	guard     *IdempotencyGuard
	logger    zerolog.Logger
}

// NewOwnerUseCase creates a new OwnerUseCase.
func NewOwnerUseCase(
	txManager TransactionManager,
	owners OwnerRepository,
	guard *IdempotencyGuard,
	logger zerolog.Logger,
) *OwnerUseCase {
	return &OwnerUseCase{
		txManager: txManager,
		owners:    owners,
		guard:     guard,
		logger:    logger,
	}
}

// ApplyChange applies one owner profile change notification under the
// idempotency guard. Profile deletions are ignored: publishing for an
// owner that disappeared fails permanently on its own.
func (uc *OwnerUseCase) ApplyChange(ctx context.Context, n domain.ChangeNotification) error {
	if n.IsDelete {
		uc.logger.Debug().
			Str("owner_id", n.OwnerID).
			Msg("ignoring owner profile deletion")

		return nil
	}

	modifiedAt := n.ModificationTime()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	obsolete, err := uc.guard.Obsolete(ctx, tx, domain.ResourceTypeOwner, n.Key(), n.OwnerID, modifiedAt)
	if err != nil {
		return err
	}

	if obsolete {
		uc.logger.Debug().
			Str("owner_id", n.OwnerID).
			Msg("discarding obsolete owner profile notification")

		return nil
	}

	var owner domain.Owner
	if err := json.Unmarshal(n.Payload, &owner); err != nil {
		return domain.NoRetry(fmt.Errorf("malformed owner payload: %w", err))
	}

	if owner.ID == "" {
		owner.ID = n.Key()
	}

	if owner.CreatedAt.IsZero() {
		owner.CreatedAt = modifiedAt
	}

	if err := uc.owners.Upsert(ctx, tx, &owner); err != nil {
		return err
	}

	if err := uc.guard.Commit(ctx, tx, domain.ResourceTypeOwner, n.Key(), n.OwnerID, modifiedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetByID returns the owner profile.
func (uc *OwnerUseCase) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	return uc.owners.GetByID(ctx, id)
}
