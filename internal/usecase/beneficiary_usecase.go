package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// BeneficiaryUseCase registers creditor bank accounts and keeps them in
// sync with the bank's counterparty registry.
type BeneficiaryUseCase struct {
	txManager     TransactionManager
	beneficiaries BeneficiaryRepository
	debtors       DebtorAccountRepository
	bank          BankClient
	idGen         IDGenerator
	logger        zerolog.Logger
}

// NewBeneficiaryUseCase creates a new BeneficiaryUseCase.
func NewBeneficiaryUseCase(
	txManager TransactionManager,
	beneficiaries BeneficiaryRepository,
	debtors DebtorAccountRepository,
	bank BankClient,
	idGen IDGenerator,
	logger zerolog.Logger,
) *BeneficiaryUseCase {
	return &BeneficiaryUseCase{
		txManager:     txManager,
		beneficiaries: beneficiaries,
		debtors:       debtors,
		bank:          bank,
		idGen:         idGen,
		logger:        logger,
	}
}

// InsertBeneficiaryInput is the input for InsertOrGet.
type InsertBeneficiaryInput struct {
	OwnerID  string
	IBAN     string
	BIC      string
	Currency string
	Country  string
}

// InsertOrGet returns the beneficiary for (owner, IBAN), creating it on
// first sight. An existing record is returned unchanged, which makes the
// operation idempotent by construction. Malformed IBAN, BIC or currency is
// a permanent failure.
func (uc *BeneficiaryUseCase) InsertOrGet(ctx context.Context, input InsertBeneficiaryInput) (*domain.BeneficiaryBankAccount, error) {
	iban := domain.NormalizeIBAN(input.IBAN)

	if err := domain.ValidateIBAN(iban); err != nil {
		return nil, domain.NoRetry(err)
	}

	if err := domain.ValidateBIC(input.BIC); err != nil {
		return nil, domain.NoRetry(err)
	}

	if input.Currency != "" {
		if err := domain.ValidateCurrency(input.Currency); err != nil {
			return nil, domain.NoRetry(err)
		}
	}

	existing, err := uc.beneficiaries.GetByOwnerAndIBAN(ctx, input.OwnerID, iban)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, domain.ErrBeneficiaryNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	b := &domain.BeneficiaryBankAccount{
		ID:        uc.idGen.Generate(),
		OwnerID:   input.OwnerID,
		IBAN:      iban,
		BIC:       input.BIC,
		Currency:  input.Currency,
		Country:   countryFromIBAN(iban),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = uc.beneficiaries.Create(ctx, b)
	if errors.Is(err, domain.ErrBeneficiaryExists) {
		// Lost the race against a concurrent insert; the stored record wins.
		return uc.beneficiaries.GetByOwnerAndIBAN(ctx, input.OwnerID, iban)
	}

	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("beneficiary_id", b.ID).
		Str("owner_id", b.OwnerID).
		Msg("beneficiary bank account registered")

	return b, nil
}

// SyncToBank registers the beneficiary as a counterparty with the bank for
// bankCode. It makes no outbound call when an external id is already
// stored. Missing currency after the debtor-account fallback skips the
// step with a warning; that is incomplete data, not an error.
func (uc *BeneficiaryUseCase) SyncToBank(ctx context.Context, ownerID, iban, bankCode string) error {
	iban = domain.NormalizeIBAN(iban)

	b, err := uc.beneficiaries.GetByOwnerAndIBAN(ctx, ownerID, iban)
	if err != nil {
		return err
	}

	if _, ok := b.ExternalID(bankCode); ok {
		return nil
	}

	currency := b.Currency
	if currency == "" {
		debtor, err := uc.debtors.GetByOwner(ctx, ownerID)
		if err != nil && !errors.Is(err, domain.ErrDebtorAccountNotFound) {
			return err
		}

		if debtor != nil {
			currency = debtor.Currency
		}
	}

	if currency == "" {
		uc.logger.Warn().
			Str("beneficiary_id", b.ID).
			Str("bank_code", bankCode).
			Msg("skipping counterparty sync: no currency on beneficiary or debtor account")

		return nil
	}

	externalID, err := uc.bank.CreateCounterparty(ctx, domain.CounterpartyRequest{
		IBAN:     b.IBAN,
		BIC:      b.BIC,
		Currency: currency,
		Country:  b.Country,
	})
	if err != nil {
		if errors.Is(err, domain.ErrBankRejected) {
			return domain.NoRetry(err)
		}

		return err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	locked, err := uc.beneficiaries.GetByOwnerAndIBANForUpdate(ctx, tx, ownerID, iban)
	if err != nil {
		return err
	}

	if err := locked.SetExternalID(bankCode, externalID, time.Now()); err != nil {
		if errors.Is(err, domain.ErrCounterpartySet) {
			// A concurrent sync won; its id stands.
			uc.logger.Debug().
				Str("beneficiary_id", b.ID).
				Str("bank_code", bankCode).
				Msg("counterparty id already stored by concurrent sync")

			return nil
		}

		return err
	}

	if err := uc.beneficiaries.Update(ctx, tx, locked); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	uc.logger.Info().
		Str("beneficiary_id", b.ID).
		Str("bank_code", bankCode).
		Str("counterparty_id", externalID).
		Msg("beneficiary synced to bank")

	return nil
}

// List lists an owner's beneficiaries.
func (uc *BeneficiaryUseCase) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.BeneficiaryBankAccount, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.beneficiaries.List(ctx, ownerID, limit, offset)
}

func countryFromIBAN(iban string) string {
	if len(iban) < 2 {
		return ""
	}

	return iban[:2]
}
