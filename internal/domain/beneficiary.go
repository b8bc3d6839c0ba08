package domain

import (
	"regexp"
	"strings"
)

// FallbackBeneficiary values used when manifesto interpretation fails.
// The address is deliberately not a valid hex address so a fallback-only will
// cannot be sealed until an operator supplies real payout addresses.
const (
	FallbackBeneficiaryName     = "Kite Developer Fund"
	FallbackBeneficiaryCategory = "Ecosystem"
	FallbackBeneficiaryAddress  = "0xKITE000000000000000000000000000FALLBACK"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Beneficiary represents one heir of a will
// Immutable once part of a sealed will (the will keeps its own copy)
type Beneficiary struct {
	Name            string
	Category        string
	PercentageShare int // 0-100
	PayoutAddress   string
	Memo            string
}

// IsValidAddress checks the 0x-prefixed 20-byte hex address format
func IsValidAddress(address string) bool {
	return addressPattern.MatchString(address)
}

// Validate ensures the beneficiary adheres to domain rules
// Returns an error if validation fails
func (b *Beneficiary) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return NewValidationError(ErrNoBeneficiaries, "beneficiary name cannot be empty")
	}

	if b.PercentageShare < 0 || b.PercentageShare > 100 {
		return NewValidationError(ErrInvalidShare, "%s has %d%%", b.Name, b.PercentageShare)
	}

	if !IsValidAddress(b.PayoutAddress) {
		return NewValidationError(ErrInvalidAddress, "%s: %q", b.Name, b.PayoutAddress)
	}

	return nil
}

// ValidateShares ensures a beneficiary list may be sealed into a will
// CRITICAL: Percentage shares must sum to exactly 100
func ValidateShares(beneficiaries []Beneficiary) error {
	if len(beneficiaries) == 0 {
		return NewValidationError(ErrNoBeneficiaries, "beneficiary list is empty")
	}

	total := 0
	for i := range beneficiaries {
		if err := beneficiaries[i].Validate(); err != nil {
			return err
		}
		total += beneficiaries[i].PercentageShare
	}

	if total != 100 {
		return NewValidationError(ErrSharesNotHundred, "got %d", total)
	}

	return nil
}

// CloneBeneficiaries returns an owned copy of the list
func CloneBeneficiaries(beneficiaries []Beneficiary) []Beneficiary {
	if beneficiaries == nil {
		return nil
	}
	out := make([]Beneficiary, len(beneficiaries))
	copy(out, beneficiaries)
	return out
}
