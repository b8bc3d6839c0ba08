package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	addrAlice = "0x1111111111111111111111111111111111111111"
	addrBob   = "0x2222222222222222222222222222222222222222"
	addrCarol = "0x3333333333333333333333333333333333333333"
)

func TestBeneficiary_Validate(t *testing.T) {
	tests := []struct {
		name        string
		beneficiary Beneficiary
		wantErr     error
	}{
		{
			name:        "valid beneficiary",
			beneficiary: Beneficiary{Name: "Alice", Category: "Family", PercentageShare: 70, PayoutAddress: addrAlice},
		},
		{
			name:        "empty name should fail",
			beneficiary: Beneficiary{Name: "  ", PercentageShare: 70, PayoutAddress: addrAlice},
			wantErr:     ErrNoBeneficiaries,
		},
		{
			name:        "share above 100 should fail",
			beneficiary: Beneficiary{Name: "Alice", PercentageShare: 101, PayoutAddress: addrAlice},
			wantErr:     ErrInvalidShare,
		},
		{
			name:        "negative share should fail",
			beneficiary: Beneficiary{Name: "Alice", PercentageShare: -1, PayoutAddress: addrAlice},
			wantErr:     ErrInvalidShare,
		},
		{
			name:        "fallback address is not a payout address",
			beneficiary: Beneficiary{Name: FallbackBeneficiaryName, PercentageShare: 100, PayoutAddress: FallbackBeneficiaryAddress},
			wantErr:     ErrInvalidAddress,
		},
		{
			name:        "short address should fail",
			beneficiary: Beneficiary{Name: "Alice", PercentageShare: 10, PayoutAddress: "0x1234"},
			wantErr:     ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.beneficiary.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestValidateShares(t *testing.T) {
	tests := []struct {
		name          string
		beneficiaries []Beneficiary
		wantErr       error
		errMsg        string
	}{
		{
			name: "70/30 split is valid",
			beneficiaries: []Beneficiary{
				{Name: "Alice", PercentageShare: 70, PayoutAddress: addrAlice},
				{Name: "Bob", PercentageShare: 30, PayoutAddress: addrBob},
			},
		},
		{
			name: "zero share entries are allowed when the total is 100",
			beneficiaries: []Beneficiary{
				{Name: "Alice", PercentageShare: 100, PayoutAddress: addrAlice},
				{Name: "Bob", PercentageShare: 0, PayoutAddress: addrBob},
			},
		},
		{
			name: "sum below 100 should fail",
			beneficiaries: []Beneficiary{
				{Name: "Alice", PercentageShare: 60, PayoutAddress: addrAlice},
				{Name: "Bob", PercentageShare: 30, PayoutAddress: addrBob},
			},
			wantErr: ErrSharesNotHundred,
			errMsg:  "got 90",
		},
		{
			name: "sum above 100 should fail",
			beneficiaries: []Beneficiary{
				{Name: "Alice", PercentageShare: 60, PayoutAddress: addrAlice},
				{Name: "Bob", PercentageShare: 30, PayoutAddress: addrBob},
				{Name: "Carol", PercentageShare: 20, PayoutAddress: addrCarol},
			},
			wantErr: ErrSharesNotHundred,
			errMsg:  "got 110",
		},
		{
			name:          "empty list should fail",
			beneficiaries: nil,
			wantErr:       ErrNoBeneficiaries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateShares(tt.beneficiaries)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestCloneBeneficiaries_IsIndependent(t *testing.T) {
	live := []Beneficiary{{Name: "Alice", PercentageShare: 100, PayoutAddress: addrAlice}}
	snapshot := CloneBeneficiaries(live)

	live[0].PercentageShare = 50
	live[0].Name = "Mallory"

	assert.Equal(t, "Alice", snapshot[0].Name)
	assert.Equal(t, 100, snapshot[0].PercentageShare)
	assert.Nil(t, CloneBeneficiaries(nil))
}
