package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// Write invalidation runs before the surrounding database transaction
// commits, so a reader racing the commit can re-cache the outgoing row.
// The TTL bounds how long such an entry can survive.
const debtorCacheTTL = 30 * time.Second

// CachedDebtorRepository decorates a DebtorAccountRepository with a
// read-through cache. Writes invalidate instead of updating so a racing
// reader never pins a stale entry past the next lookup.
type CachedDebtorRepository struct {
	inner  usecase.DebtorAccountRepository
	cache  usecase.Cache
	logger zerolog.Logger
}

// NewCachedDebtorRepository creates a new CachedDebtorRepository.
func NewCachedDebtorRepository(inner usecase.DebtorAccountRepository, cache usecase.Cache, logger zerolog.Logger) *CachedDebtorRepository {
	return &CachedDebtorRepository{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}
}

// GetByOwner returns the debtor account read model, served from cache
// when possible. Cache failures fall through to the inner repository.
func (r *CachedDebtorRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.DebtorBankAccount, error) {
	key := debtorCacheKey(ownerID)

	if raw, err := r.cache.Get(ctx, key); err == nil {
		var account domain.DebtorBankAccount
		if err := json.Unmarshal(raw, &account); err == nil {
			return &account, nil
		}

		// Corrupt entry, drop it and refetch.
		_ = r.cache.Delete(ctx, key)
	}

	account, err := r.inner.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(account); err == nil {
		if err := r.cache.Set(ctx, key, raw, debtorCacheTTL); err != nil {
			r.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("debtor cache set failed")
		}
	}

	return account, nil
}

// Upsert writes through to the inner repository and invalidates the
// cached entry.
func (r *CachedDebtorRepository) Upsert(ctx context.Context, tx usecase.Transaction, a *domain.DebtorBankAccount) error {
	if err := r.inner.Upsert(ctx, tx, a); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, debtorCacheKey(a.OwnerID)); err != nil {
		r.logger.Warn().Err(err).Str("owner_id", a.OwnerID).Msg("debtor cache invalidation failed")
	}

	return nil
}

// Delete removes the read model and its cached entry.
func (r *CachedDebtorRepository) Delete(ctx context.Context, tx usecase.Transaction, ownerID string) error {
	if err := r.inner.Delete(ctx, tx, ownerID); err != nil {
		return err
	}

	if err := r.cache.Delete(ctx, debtorCacheKey(ownerID)); err != nil {
		r.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("debtor cache invalidation failed")
	}

	return nil
}

func debtorCacheKey(ownerID string) string {
	return "debtor:" + ownerID
}
