package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// BeneficiaryRepository implements usecase.BeneficiaryRepository.
type BeneficiaryRepository struct {
	pool *pgxpool.Pool
}

// NewBeneficiaryRepository creates a new BeneficiaryRepository.
func NewBeneficiaryRepository(pool *pgxpool.Pool) *BeneficiaryRepository {
	return &BeneficiaryRepository{pool: pool}
}

const beneficiaryColumns = `id, owner_id, iban, bic, currency, country, external_ids, created_at, updated_at`

// Create inserts a new beneficiary. A concurrent insert for the same
// (owner, IBAN) surfaces as ErrBeneficiaryExists.
func (r *BeneficiaryRepository) Create(ctx context.Context, b *domain.BeneficiaryBankAccount) error {
	externalIDs, err := marshalExternalIDs(b)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO beneficiary_accounts (`+beneficiaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.OwnerID, b.IBAN, b.BIC, b.Currency, b.Country, externalIDs,
		timeToPgTimestamptz(b.CreatedAt), timeToPgTimestamptz(b.UpdatedAt),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return domain.ErrBeneficiaryExists
	}

	return err
}

// GetByOwnerAndIBAN retrieves a beneficiary by its natural key.
func (r *BeneficiaryRepository) GetByOwnerAndIBAN(ctx context.Context, ownerID, iban string) (*domain.BeneficiaryBankAccount, error) {
	return r.getOne(ctx, r.pool,
		`SELECT `+beneficiaryColumns+` FROM beneficiary_accounts WHERE owner_id = $1 AND iban = $2`,
		ownerID, iban)
}

// GetByOwnerAndIBANForUpdate retrieves a beneficiary with a FOR UPDATE
// lock.
func (r *BeneficiaryRepository) GetByOwnerAndIBANForUpdate(ctx context.Context, tx usecase.Transaction, ownerID, iban string) (*domain.BeneficiaryBankAccount, error) {
	return r.getOne(ctx, txQuerier(tx),
		`SELECT `+beneficiaryColumns+` FROM beneficiary_accounts WHERE owner_id = $1 AND iban = $2 FOR UPDATE`,
		ownerID, iban)
}

// Update persists the mutable fields of a beneficiary.
func (r *BeneficiaryRepository) Update(ctx context.Context, tx usecase.Transaction, b *domain.BeneficiaryBankAccount) error {
	externalIDs, err := marshalExternalIDs(b)
	if err != nil {
		return err
	}

	_, err = txQuerier(tx).Exec(ctx, `
		UPDATE beneficiary_accounts SET
			bic = $2, currency = $3, country = $4, external_ids = $5, updated_at = $6
		WHERE id = $1`,
		b.ID, b.BIC, b.Currency, b.Country, externalIDs, timeToPgTimestamptz(b.UpdatedAt),
	)

	return err
}

// List lists an owner's beneficiaries.
func (r *BeneficiaryRepository) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.BeneficiaryBankAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+beneficiaryColumns+` FROM beneficiary_accounts
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.BeneficiaryBankAccount
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, b)
	}

	return out, rows.Err()
}

func (r *BeneficiaryRepository) getOne(ctx context.Context, q querier, sql string, args ...any) (*domain.BeneficiaryBankAccount, error) {
	b, err := scanBeneficiary(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBeneficiaryNotFound
		}

		return nil, err
	}

	return b, nil
}

func scanBeneficiary(row rowScanner) (*domain.BeneficiaryBankAccount, error) {
	var (
		b           domain.BeneficiaryBankAccount
		externalIDs []byte
		createdAt   pgtype.Timestamptz
		updatedAt   pgtype.Timestamptz
	)

	err := row.Scan(&b.ID, &b.OwnerID, &b.IBAN, &b.BIC, &b.Currency, &b.Country, &externalIDs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	b.CreatedAt = createdAt.Time
	b.UpdatedAt = updatedAt.Time

	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &b.ExternalIDs); err != nil {
			return nil, fmt.Errorf("decoding external ids for %s: %w", b.ID, err)
		}
	}

	return &b, nil
}

func marshalExternalIDs(b *domain.BeneficiaryBankAccount) ([]byte, error) {
	if b.ExternalIDs == nil {
		return []byte("{}"), nil
	}

	raw, err := json.Marshal(b.ExternalIDs)
	if err != nil {
		return nil, fmt.Errorf("encoding external ids for %s: %w", b.ID, err)
	}

	return raw, nil
}
