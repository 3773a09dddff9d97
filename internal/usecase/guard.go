package usecase

import (
	"context"
	"time"

	"github.com/iho/payrec/internal/domain"
)

// IdempotencyGuard rejects stale or duplicate change notifications using a
// per-resource last-applied-modification-time mark. The mark upsert runs in
// the same database transaction as the guarded mutation, so both commit as
// one atomic unit.
type IdempotencyGuard struct {
	marks IdempotencyRepository
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(marks IdempotencyRepository) *IdempotencyGuard {
	return &IdempotencyGuard{marks: marks}
}

// Obsolete reports whether an incoming modification time was already
// applied. Equal timestamps count as obsolete once the first one landed.
func (g *IdempotencyGuard) Obsolete(ctx context.Context, tx Transaction, resourceType, uniqueKey, ownerID string, incoming time.Time) (bool, error) {
	mark, err := g.marks.Get(ctx, tx, resourceType, uniqueKey, ownerID)
	if err != nil {
		return false, err
	}

	if mark == nil {
		return false, nil
	}

	return mark.Obsoletes(incoming), nil
}

// Commit persists the new modification time inside the caller's database
// transaction.
func (g *IdempotencyGuard) Commit(ctx context.Context, tx Transaction, resourceType, uniqueKey, ownerID string, modifiedAt time.Time) error {
	return g.marks.Upsert(ctx, tx, &domain.IdempotencyMark{
		ResourceType: resourceType,
		UniqueKey:    uniqueKey,
		OwnerID:      ownerID,
		ModifiedAt:   modifiedAt,
	})
}
