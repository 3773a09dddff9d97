package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// DefaultPaymentLeadTime is how far ahead of the due date a payment is
// scheduled.
const DefaultPaymentLeadTime = 48 * time.Hour

// PaymentUseCase submits a payment draft to the bank once every
// precondition of the reconciliation pipeline holds.
type PaymentUseCase struct {
	txManager     TransactionManager
	transactions  TransactionRepository
	beneficiaries BeneficiaryRepository
	debtors       DebtorAccountRepository
	bank          BankClient
	leadTime      time.Duration
	logger        zerolog.Logger
}

// NewPaymentUseCase creates a new PaymentUseCase. A non-positive leadTime
// falls back to the default.
func NewPaymentUseCase(
	txManager TransactionManager,
	transactions TransactionRepository,
	beneficiaries BeneficiaryRepository,
	debtors DebtorAccountRepository,
	bank BankClient,
	leadTime time.Duration,
	logger zerolog.Logger,
) *PaymentUseCase {
	if leadTime <= 0 {
		leadTime = DefaultPaymentLeadTime
	}

	return &PaymentUseCase{
		txManager:     txManager,
		transactions:  transactions,
		beneficiaries: beneficiaries,
		debtors:       debtors,
		bank:          bank,
		leadTime:      leadTime,
		logger:        logger,
	}
}

// ScheduleDate computes the payment date for a due date, keeping the
// payment close to but never later than the due date, and never in the
// past. A nil result means execute immediately.
func ScheduleDate(due *time.Time, today time.Time, leadTime time.Duration) *time.Time {
	if due == nil {
		return nil
	}

	dueDay := truncateToDay(due.In(today.Location()))
	todayDay := truncateToDay(today)

	if !dueDay.After(todayDay) {
		return nil
	}

	// The lead time counts calendar days, so a DST transition in the
	// debtor's timezone cannot shift the planned date off midnight.
	planned := dueDay.AddDate(0, 0, -leadDays(leadTime))
	if todayDay.Before(planned) {
		return &planned
	}

	return nil
}

func leadDays(leadTime time.Duration) int {
	days := int(leadTime / (24 * time.Hour))
	if leadTime%(24*time.Hour) > 0 {
		days++
	}

	return days
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SchedulePayment submits the payment draft for an invoice-backed
// transaction. Each unmet precondition is a silent skip, not an error: the
// step is re-triggered by beneficiary sync and invoice updates and is
// expected to eventually find all of them satisfied.
func (uc *PaymentUseCase) SchedulePayment(ctx context.Context, ownerID, invoiceID string) error {
	t, err := uc.transactions.GetByInvoiceID(ctx, ownerID, invoiceID)
	if errors.Is(err, domain.ErrTransactionNotFound) {
		uc.skip(invoiceID, "no placeholder transaction")
		return nil
	}

	if err != nil {
		return err
	}

	if t.State == domain.TransactionStateCompleted || t.ExternalID != "" {
		uc.logger.Debug().
			Str("transaction_id", t.ID).
			Msg("payment draft already submitted or settled")

		return nil
	}

	invoice := t.Detail.Invoice
	if invoice == nil {
		uc.skip(invoiceID, "transaction carries no invoice detail")
		return nil
	}

	if !invoice.PaymentOrdered {
		uc.skip(invoiceID, "no payment instruction on invoice")
		return nil
	}

	debtor, err := uc.debtors.GetByOwner(ctx, ownerID)
	if err != nil && !errors.Is(err, domain.ErrDebtorAccountNotFound) {
		return err
	}

	if !debtor.Ready() {
		uc.skip(invoiceID, "debtor account missing or not ready")
		return nil
	}

	if invoice.CreditorIBAN == "" {
		uc.skip(invoiceID, "no creditor IBAN on invoice")
		return nil
	}

	beneficiary, err := uc.beneficiaries.GetByOwnerAndIBAN(ctx, ownerID, domain.NormalizeIBAN(invoice.CreditorIBAN))
	if errors.Is(err, domain.ErrBeneficiaryNotFound) {
		uc.skip(invoiceID, "beneficiary not registered yet")
		return nil
	}

	if err != nil {
		return err
	}

	counterpartyID, ok := beneficiary.ExternalID(debtor.BankCode)
	if !ok {
		uc.skip(invoiceID, "beneficiary not synced to bank yet")
		return nil
	}

	currency := t.Currency
	if currency == "" {
		currency = debtor.Currency
	}

	now := time.Now().In(debtor.Location())
	date := ScheduleDate(invoice.DueDate, now, uc.leadTime)

	draftID, err := uc.bank.CreatePaymentDraft(ctx, domain.PaymentDraftRequest{
		CounterpartyID:    counterpartyID,
		Amount:            t.Amount,
		Currency:          currency,
		ReconciliationKey: t.ReconciliationKey,
		Reference:         t.Reference,
		Date:              date,
	})
	if err != nil {
		if errors.Is(err, domain.ErrBankRejected) {
			// Client-side rejection; the surrounding task retry policy
			// decides whether the whole step reruns.
			uc.logger.Error().
				Err(err).
				Str("transaction_id", t.ID).
				Msg("bank rejected payment draft")

			return nil
		}

		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.transactions.GetByIDForUpdate(ctx, tx, t.ID)
	if err != nil {
		return err
	}

	locked.Credit = true
	locked.Currency = currency
	locked.BankCode = debtor.BankCode
	locked.ExternalID = draftID
	locked.UpdatedAt = time.Now().UTC()

	if err := uc.transactions.Update(ctx, tx, locked); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	uc.logger.Info().
		Str("transaction_id", t.ID).
		Str("payment_draft_id", draftID).
		Str("bank_code", debtor.BankCode).
		Msg("payment draft scheduled")

	return nil
}

func (uc *PaymentUseCase) skip(invoiceID, reason string) {
	uc.logger.Warn().
		Str("invoice_id", invoiceID).
		Str("reason", reason).
		Msg("payment scheduling skipped")
}
