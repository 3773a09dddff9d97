package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// DebtorAccountRepository implements usecase.DebtorAccountRepository.
type DebtorAccountRepository struct {
	pool *pgxpool.Pool
}

// NewDebtorAccountRepository creates a new DebtorAccountRepository.
func NewDebtorAccountRepository(pool *pgxpool.Pool) *DebtorAccountRepository {
	return &DebtorAccountRepository{pool: pool}
}

// GetByOwner retrieves the debtor account read model for an owner.
func (r *DebtorAccountRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.DebtorBankAccount, error) {
	var (
		a         domain.DebtorBankAccount
		updatedAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, iban, currency, bank_code, external_id, timezone, updated_at
		FROM debtor_accounts WHERE owner_id = $1`,
		ownerID,
	).Scan(&a.OwnerID, &a.IBAN, &a.Currency, &a.BankCode, &a.ExternalID, &a.Timezone, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDebtorAccountNotFound
		}

		return nil, err
	}

	a.UpdatedAt = updatedAt.Time

	return &a, nil
}

// Upsert stores the latest snapshot of the debtor account.
func (r *DebtorAccountRepository) Upsert(ctx context.Context, tx usecase.Transaction, a *domain.DebtorBankAccount) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO debtor_accounts (owner_id, iban, currency, bank_code, external_id, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id) DO UPDATE SET
			iban = EXCLUDED.iban,
			currency = EXCLUDED.currency,
			bank_code = EXCLUDED.bank_code,
			external_id = EXCLUDED.external_id,
			timezone = EXCLUDED.timezone,
			updated_at = EXCLUDED.updated_at`,
		a.OwnerID, a.IBAN, a.Currency, a.BankCode, a.ExternalID, a.Timezone,
		timeToPgTimestamptz(a.UpdatedAt),
	)

	return err
}

// Delete removes the read model for an owner.
func (r *DebtorAccountRepository) Delete(ctx context.Context, tx usecase.Transaction, ownerID string) error {
	_, err := txQuerier(tx).Exec(ctx, `DELETE FROM debtor_accounts WHERE owner_id = $1`, ownerID)
	return err
}
