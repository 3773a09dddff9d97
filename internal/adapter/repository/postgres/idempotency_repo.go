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

// IdempotencyRepository implements usecase.IdempotencyRepository. Reads
// take a row lock so concurrent notifications for the same resource
// serialize on the mark.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Get loads a mark inside the caller's transaction, (nil, nil) when no
// mark exists yet.
func (r *IdempotencyRepository) Get(ctx context.Context, tx usecase.Transaction, resourceType, uniqueKey, ownerID string) (*domain.IdempotencyMark, error) {
	var (
		mark       domain.IdempotencyMark
		modifiedAt pgtype.Timestamptz
	)

	err := txQuerier(tx).QueryRow(ctx, `
		SELECT resource_type, unique_key, owner_id, modified_at
		FROM idempotency_marks
		WHERE resource_type = $1 AND unique_key = $2 AND owner_id = $3
		FOR UPDATE`,
		resourceType, uniqueKey, ownerID,
	).Scan(&mark.ResourceType, &mark.UniqueKey, &mark.OwnerID, &modifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	mark.ModifiedAt = modifiedAt.Time

	return &mark, nil
}

// Upsert records the applied modification time. The stored time only ever
// moves forward.
func (r *IdempotencyRepository) Upsert(ctx context.Context, tx usecase.Transaction, mark *domain.IdempotencyMark) error {
	_, err := txQuerier(tx).Exec(ctx, `
		INSERT INTO idempotency_marks (resource_type, unique_key, owner_id, modified_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_type, unique_key, owner_id) DO UPDATE SET
			modified_at = GREATEST(idempotency_marks.modified_at, EXCLUDED.modified_at)`,
		mark.ResourceType, mark.UniqueKey, mark.OwnerID, timeToPgTimestamptz(mark.ModifiedAt),
	)

	return err
}
