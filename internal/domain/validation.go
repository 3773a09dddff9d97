package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation errors
var (
	ErrInvalidIBAN     = errors.New("invalid IBAN")
	ErrInvalidBIC      = errors.New("invalid BIC")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Valid currency codes (ISO 4217)
var validCurrencies = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "CHF": true,
	"CZK": true, "PLN": true, "HUF": true, "RON": true,
	"SEK": true, "NOK": true, "DKK": true, "BGN": true,
	"JPY": true, "CNY": true, "AUD": true, "CAD": true,
	"NZD": true, "SGD": true, "HKD": true, "TRY": true,
}

var bicRegex = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)

// ValidateIBAN checks length, character set and the ISO 13616 mod-97
// check digits.
func ValidateIBAN(iban string) error {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))

	if len(iban) < 15 || len(iban) > 34 {
		return fmt.Errorf("%w: length %d out of range", ErrInvalidIBAN, len(iban))
	}

	for _, c := range iban {
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return fmt.Errorf("%w: invalid character %q", ErrInvalidIBAN, c)
		}
	}

	// Move the country code and check digits to the end, then compute the
	// remainder mod 97 over the digit expansion (A=10 .. Z=35).
	rearranged := iban[4:] + iban[:4]

	remainder := 0
	for _, c := range rearranged {
		if c >= '0' && c <= '9' {
			remainder = (remainder*10 + int(c-'0')) % 97
		} else {
			remainder = (remainder*100 + int(c-'A') + 10) % 97
		}
	}

	if remainder != 1 {
		return fmt.Errorf("%w: check digits do not match", ErrInvalidIBAN)
	}

	return nil
}

// ValidateBIC validates an ISO 9362 business identifier code. Empty is
// allowed; BIC is optional on SEPA payments.
func ValidateBIC(bic string) error {
	if bic == "" {
		return nil
	}

	if !bicRegex.MatchString(strings.ToUpper(bic)) {
		return fmt.Errorf("%w: %s", ErrInvalidBIC, bic)
	}

	return nil
}

// ValidateCurrency validates an ISO 4217 currency code.
func ValidateCurrency(currency string) error {
	if !validCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		return fmt.Errorf("%w: %s is not a valid ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// NormalizeIBAN strips spaces and upper-cases for storage and comparison.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
}

// ValidatePagination clamps pagination parameters.
func ValidatePagination(limit, offset int) (int, int) {
	const maxPageSize = 1000
	const defaultPageSize = 50

	if limit <= 0 {
		limit = defaultPageSize
	}

	if limit > maxPageSize {
		limit = maxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
