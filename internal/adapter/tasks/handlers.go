// Package tasks binds the reconciliation usecases to the task substrate.
// Each pipeline step is a self-contained task with its own retry versus
// permanent-failure classification.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
	"github.com/iho/payrec/internal/taskqueue"
	"github.com/iho/payrec/internal/usecase"
)

// Handlers wires usecases into task handlers.
type Handlers struct {
	transactions  *usecase.TransactionUseCase
	beneficiaries *usecase.BeneficiaryUseCase
	payments      *usecase.PaymentUseCase
	webhooks      *usecase.WebhookUseCase
	publisher     *usecase.PublisherUseCase
	debtors       *usecase.DebtorAccountUseCase
	scheduler     taskqueue.Scheduler
	logger        zerolog.Logger
}

// NewHandlers creates the pipeline handler set.
func NewHandlers(
	transactions *usecase.TransactionUseCase,
	beneficiaries *usecase.BeneficiaryUseCase,
	payments *usecase.PaymentUseCase,
	webhooks *usecase.WebhookUseCase,
	publisher *usecase.PublisherUseCase,
	debtors *usecase.DebtorAccountUseCase,
	scheduler taskqueue.Scheduler,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		transactions:  transactions,
		beneficiaries: beneficiaries,
		payments:      payments,
		webhooks:      webhooks,
		publisher:     publisher,
		debtors:       debtors,
		scheduler:     scheduler,
		logger:        logger,
	}
}

// Register binds every pipeline task kind. The webhook task chains the
// publish task behind a "completion is visible" guard.
func (h *Handlers) Register(r *taskqueue.Registry) {
	r.Register(KindTransactionCreate, h.createTransaction)
	r.Register(KindTransactionDelete, h.deleteTransaction)
	r.Register(KindBeneficiarySync, h.syncBeneficiary)
	r.Register(KindPaymentSchedule, h.schedulePayment)
	r.Register(KindTransactionPublish, h.publishTransaction)

	r.Register(KindWebhookProcess, taskqueue.Chain(
		h.processWebhook,
		h.scheduler,
		taskqueue.NextTask{
			Kind: KindTransactionPublish,
			Payload: func(res taskqueue.Result) any {
				t := res.(*domain.Transaction)
				return PublishTransactionPayload{TransactionID: t.ID}
			},
		},
		completionVisible,
	))
}

// completionVisible gates the publish continuation on the just-written
// transaction being durably complete.
func completionVisible(res taskqueue.Result) bool {
	t, ok := res.(*domain.Transaction)
	return ok && t != nil && !t.Incomplete()
}

func (h *Handlers) createTransaction(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p CreateTransactionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding create payload: %w", err))
	}

	t, err := h.transactions.CreateFromInvoice(ctx, p.Invoice)
	if err != nil {
		return nil, err
	}

	if t == nil {
		// Obsolete notification; nothing more to drive.
		return nil, nil
	}

	if p.Invoice.CreditorIBAN != "" {
		err := h.scheduler.Schedule(ctx, KindBeneficiarySync, SyncBeneficiaryPayload{
			OwnerID:   p.Invoice.OwnerID,
			InvoiceID: p.Invoice.ID,
			IBAN:      p.Invoice.CreditorIBAN,
			BIC:       p.Invoice.CreditorBIC,
			Currency:  p.Invoice.Currency,
		})
		if err != nil {
			return nil, err
		}
	}

	err = h.scheduler.Schedule(ctx, KindPaymentSchedule, SchedulePaymentPayload{
		OwnerID:   p.Invoice.OwnerID,
		InvoiceID: p.Invoice.ID,
	})
	if err != nil {
		return nil, err
	}

	return t, nil
}

func (h *Handlers) deleteTransaction(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p DeleteTransactionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding delete payload: %w", err))
	}

	return nil, h.transactions.DeleteForInvoice(ctx, p.OwnerID, p.InvoiceID, p.PublishedAt)
}

func (h *Handlers) syncBeneficiary(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p SyncBeneficiaryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding beneficiary payload: %w", err))
	}

	b, err := h.beneficiaries.InsertOrGet(ctx, usecase.InsertBeneficiaryInput{
		OwnerID:  p.OwnerID,
		IBAN:     p.IBAN,
		BIC:      p.BIC,
		Currency: p.Currency,
	})
	if err != nil {
		return nil, err
	}

	debtor, err := h.debtors.GetByOwner(ctx, p.OwnerID)
	if err != nil && !errors.Is(err, domain.ErrDebtorAccountNotFound) {
		return nil, err
	}

	if debtor == nil || debtor.BankCode == "" {
		// The debtor account read model is not there yet; the next invoice
		// update re-triggers this step.
		h.logger.Warn().
			Str("owner_id", p.OwnerID).
			Str("beneficiary_id", b.ID).
			Msg("skipping bank sync: debtor bank code unknown")

		return nil, nil
	}

	if err := h.beneficiaries.SyncToBank(ctx, p.OwnerID, p.IBAN, debtor.BankCode); err != nil {
		return nil, err
	}

	// The sync may have been the last missing precondition.
	err = h.scheduler.Schedule(ctx, KindPaymentSchedule, SchedulePaymentPayload{
		OwnerID:   p.OwnerID,
		InvoiceID: p.InvoiceID,
	})
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (h *Handlers) schedulePayment(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p SchedulePaymentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding payment payload: %w", err))
	}

	return nil, h.payments.SchedulePayment(ctx, p.OwnerID, p.InvoiceID)
}

func (h *Handlers) processWebhook(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p ProcessWebhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding webhook payload: %w", err))
	}

	t, err := h.webhooks.ProcessEvent(ctx, p.Event)
	if t == nil {
		return nil, err
	}

	return t, err
}

func (h *Handlers) publishTransaction(ctx context.Context, payload json.RawMessage) (taskqueue.Result, error) {
	var p PublishTransactionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, domain.NoRetry(fmt.Errorf("decoding publish payload: %w", err))
	}

	return nil, h.publisher.Publish(ctx, p.TransactionID)
}
