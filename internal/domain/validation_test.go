package domain

import (
	"errors"
	"testing"
)

func TestValidateIBAN(t *testing.T) {
	tests := []struct {
		name    string
		iban    string
		wantErr bool
	}{
		{name: "valid SK", iban: "SK4711000000001987426062"},
		{name: "valid DE", iban: "DE89370400440532013000"},
		{name: "valid GB", iban: "GB82WEST12345698765432"},
		{name: "valid with spaces", iban: "DE89 3704 0044 0532 0130 00"},
		{name: "valid lowercase", iban: "de89370400440532013000"},
		{name: "bad check digits", iban: "SK4811000000001987426062", wantErr: true},
		{name: "too short", iban: "SK47110000", wantErr: true},
		{name: "illegal character", iban: "DE8937040044053201300!", wantErr: true},
		{name: "empty", iban: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIBAN(tt.iban)
			if tt.wantErr && !errors.Is(err, ErrInvalidIBAN) {
				t.Fatalf("expected ErrInvalidIBAN, got %v", err)
			}

			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateBIC(t *testing.T) {
	tests := []struct {
		name    string
		bic     string
		wantErr bool
	}{
		{name: "valid 8", bic: "TATRSKBX"},
		{name: "valid 11", bic: "DEUTDEFF500"},
		{name: "empty allowed", bic: ""},
		{name: "too short", bic: "TATR", wantErr: true},
		{name: "bad length", bic: "TATRSKBX1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBIC(tt.bic)
			if tt.wantErr && !errors.Is(err, ErrInvalidBIC) {
				t.Fatalf("expected ErrInvalidBIC, got %v", err)
			}

			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateCurrency(t *testing.T) {
	if err := ValidateCurrency("EUR"); err != nil {
		t.Errorf("EUR should be valid: %v", err)
	}

	if err := ValidateCurrency("eur"); err != nil {
		t.Errorf("currency check should be case insensitive: %v", err)
	}

	if err := ValidateCurrency("XYZ"); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}
}

func TestValidatePagination(t *testing.T) {
	limit, offset := ValidatePagination(0, -5)
	if limit != 50 || offset != 0 {
		t.Errorf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Errorf("expected limit clamped to 1000, got %d", limit)
	}
}
