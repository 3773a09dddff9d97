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

// OwnerRepository implements usecase.OwnerRepository.
type OwnerRepository struct {
	pool *pgxpool.Pool
}

// NewOwnerRepository creates a new OwnerRepository.
func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

// GetByID retrieves an owner profile.
func (r *OwnerRepository) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	var (
		o         domain.Owner
		createdAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, country, created_at FROM owners WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.Name, &o.Email, &o.Country, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOwnerNotFound
		}

		return nil, err
	}

	o.CreatedAt = createdAt.Time

	return &o, nil
}

// Upsert stores the latest owner profile snapshot inside the caller's
// transaction, so the idempotency mark commits with it.
func (r *OwnerRepository) Upsert(ctx context.Context, tx usecase.Transaction, o *domain.Owner) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO owners (id, name, email, country, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			country = EXCLUDED.country`,
		o.ID, o.Name, o.Email, o.Country, timeToPgTimestamptz(o.CreatedAt),
	)

	return err
}
