package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// PublisherUseCase exposes a finalized transaction to downstream
// subscribers. It runs as a task chained behind the webhook dispatcher,
// gated on the completion write being durably visible.
type PublisherUseCase struct {
	transactions TransactionRepository
	owners       OwnerRepository
	publisher    MessagePublisher
	topic        string
	logger       zerolog.Logger
}

// NewPublisherUseCase creates a new PublisherUseCase.
func NewPublisherUseCase(
	transactions TransactionRepository,
	owners OwnerRepository,
	publisher MessagePublisher,
	topic string,
	logger zerolog.Logger,
) *PublisherUseCase {
	return &PublisherUseCase{
		transactions: transactions,
		owners:       owners,
		publisher:    publisher,
		topic:        topic,
		logger:       logger,
	}
}

// Publish loads, serializes and publishes one transaction. The key was
// valid when the task was scheduled, so absence now is a genuine anomaly
// and permanent; so are missing owner identity fields and serialization
// failures. Only the transport call itself is retryable.
func (uc *PublisherUseCase) Publish(ctx context.Context, transactionID string) error {
	t, err := uc.transactions.GetByID(ctx, transactionID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		uc.logger.Error().
			Str("transaction_id", transactionID).
			Msg("transaction vanished before publishing")

		return domain.NoRetry(err)
	}

	if err != nil {
		return err
	}

	owner, err := uc.owners.GetByID(ctx, t.OwnerID)
	if errors.Is(err, domain.ErrOwnerNotFound) {
		return domain.NoRetry(err)
	}

	if err != nil {
		return err
	}

	if err := owner.ValidateIdentity(); err != nil {
		return domain.NoRetry(err)
	}

	payload, err := json.Marshal(domain.TransactionPublishedEvent{
		EventType:         domain.EventTypeTransactionCompleted,
		TransactionID:     t.ID,
		OwnerID:           owner.ID,
		OwnerName:         owner.Name,
		OwnerEmail:        owner.Email,
		Amount:            t.Amount.String(),
		Currency:          t.Currency,
		BankCode:          t.BankCode,
		ReconciliationKey: t.ReconciliationKey,
		Reference:         t.Reference,
		Kind:              string(t.Detail.Kind),
		State:             string(t.State),
		CompletedAt:       t.CompletedAt,
	})
	if err != nil {
		// A serialization failure is a bug, not a transient fault.
		return domain.NoRetry(fmt.Errorf("serializing transaction %s: %w", t.ID, err))
	}

	if err := uc.publisher.Publish(uc.topic, payload); err != nil {
		return fmt.Errorf("publishing transaction %s: %w", t.ID, err)
	}

	uc.logger.Info().
		Str("transaction_id", t.ID).
		Str("topic", uc.topic).
		Msg("transaction published downstream")

	return nil
}
