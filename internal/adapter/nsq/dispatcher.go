package nsq

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/adapter/tasks"
	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/usecase"
)

// ChangeDispatcher routes upstream change notifications. Invoice changes
// become durable pipeline tasks; debtor account and owner profile changes
// are applied to their read models directly, relying on NSQ redelivery
// plus the idempotency guard for at-least-once semantics.
type ChangeDispatcher struct {
	scheduler usecase.TaskScheduler
	debtors   *usecase.DebtorAccountUseCase
	owners    *usecase.OwnerUseCase
	logger    zerolog.Logger
}

// NewChangeDispatcher creates a dispatcher.
func NewChangeDispatcher(scheduler usecase.TaskScheduler, debtors *usecase.DebtorAccountUseCase, owners *usecase.OwnerUseCase, logger zerolog.Logger) *ChangeDispatcher {
	return &ChangeDispatcher{scheduler: scheduler, debtors: debtors, owners: owners, logger: logger}
}

// HandleMessage processes one raw change notification. Malformed messages
// are dropped; requeueing cannot repair them.
func (d *ChangeDispatcher) HandleMessage(body []byte) error {
	ctx := context.Background()

	var n domain.ChangeNotification
	if err := json.Unmarshal(body, &n); err != nil {
		d.logger.Error().Err(err).Msg("dropping malformed change notification")
		return nil
	}

	switch n.ResourceType {
	case domain.ResourceTypeInvoice:
		return d.dispatchInvoice(ctx, n)
	case domain.ResourceTypeDebtorAccount:
		err := d.debtors.ApplyChange(ctx, n)
		if domain.IsNoRetry(err) {
			d.logger.Error().Err(err).Str("owner_id", n.OwnerID).Msg("dropping unprocessable debtor account change")
			return nil
		}

		return err
	case domain.ResourceTypeOwner:
		err := d.owners.ApplyChange(ctx, n)
		if domain.IsNoRetry(err) {
			d.logger.Error().Err(err).Str("owner_id", n.OwnerID).Msg("dropping unprocessable owner profile change")
			return nil
		}

		return err
	default:
		d.logger.Debug().Str("resource_type", n.ResourceType).Msg("ignoring change notification")
		return nil
	}
}

func (d *ChangeDispatcher) dispatchInvoice(ctx context.Context, n domain.ChangeNotification) error {
	if n.IsDelete {
		return d.scheduler.Schedule(ctx, tasks.KindTransactionDelete, tasks.DeleteTransactionPayload{
			OwnerID:     n.OwnerID,
			InvoiceID:   n.Key(),
			PublishedAt: n.PublishedAt,
		})
	}

	var invoice domain.Invoice
	if err := json.Unmarshal(n.Payload, &invoice); err != nil {
		d.logger.Error().Err(err).Str("invoice_id", n.Key()).Msg("dropping invoice change with malformed payload")
		return nil
	}

	if !invoice.Sent {
		// Drafts never enter the ledger.
		d.logger.Debug().Str("invoice_id", invoice.ID).Msg("ignoring unsent invoice")
		return nil
	}

	if invoice.OwnerID == "" {
		invoice.OwnerID = n.OwnerID
	}

	if invoice.ModifiedAt.IsZero() {
		invoice.ModifiedAt = n.ModificationTime()
	}

	return d.scheduler.Schedule(ctx, tasks.KindTransactionCreate, tasks.CreateTransactionPayload{Invoice: invoice})
}
