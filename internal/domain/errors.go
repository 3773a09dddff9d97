package domain

import "errors"

var (
	// Transaction errors
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionCompleted     = errors.New("transaction already completed")
	ErrTransactionFailed        = errors.New("transaction marked as failed")
	ErrMissingReconciliationKey = errors.New("no reconciliation key: variable symbol, payment key and invoice number are all empty")

	// Beneficiary errors
	ErrBeneficiaryNotFound = errors.New("beneficiary bank account not found")
	ErrBeneficiaryExists   = errors.New("beneficiary bank account already exists")
	ErrCounterpartySet     = errors.New("counterparty id already set for bank code")

	// Debtor account errors
	ErrDebtorAccountNotFound = errors.New("debtor bank account not found")

	// Owner errors
	ErrOwnerNotFound        = errors.New("owner not found")
	ErrOwnerIdentityMissing = errors.New("owner is missing required identity fields")

	// Bank API errors
	ErrBankTransactionNotFound = errors.New("bank transaction not found")
	ErrBankRejected            = errors.New("bank rejected the request")
)

// NoRetryError marks a failure as permanent. The task substrate stops
// redelivering a task whose handler returns one.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return "no retry: " + e.Err.Error()
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps err as permanent. Returns nil for a nil err.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}

	return &NoRetryError{Err: err}
}

// IsNoRetry reports whether any error in the chain is a NoRetryError.
func IsNoRetry(err error) bool {
	var nr *NoRetryError
	return errors.As(err, &nr)
}
