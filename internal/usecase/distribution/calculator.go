package distribution

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sileme/sileme-backend/internal/domain"
)

// DefaultGasReservePercent is the share of the balance held back for transaction costs
const DefaultGasReservePercent = 5

var hundred = decimal.NewFromInt(100)

// Calculate builds the distribution plan for a balance given in smallest units
// Returns a plan with IsValid=false and an InvalidReason instead of an error
// Logic:
//  1. Parse the balance; zero, negative, fractional or unparsable balances fail soft
//  2. Hold back gasReserve = balance * gasReservePercent / 100
//  3. distributable = balance - gasReserve
//  4. Each beneficiary, in declared order, gets distributable * share / 100 (truncated toward zero)
//  5. TotalAmount is the sum of the items; it is NOT forced to equal distributable
//
// Integer arithmetic only: amounts never pass through binary floating point.
// Pure: identical inputs always produce identical plans.
func Calculate(balance string, beneficiaries []domain.Beneficiary, gasReservePercent int) domain.DistributionPlan {
	amount, err := decimal.NewFromString(strings.TrimSpace(balance))
	if err != nil {
		return invalidPlan(fmt.Sprintf("cannot parse balance %q", balance))
	}

	if !amount.IsInteger() || amount.IsNegative() {
		return invalidPlan(fmt.Sprintf("balance %q is not a non-negative integer amount", balance))
	}

	if amount.IsZero() {
		return invalidPlan("balance is zero, fund the wallet before distributing")
	}

	if gasReservePercent < 0 || gasReservePercent > 100 {
		return invalidPlan(fmt.Sprintf("gas reserve percent %d out of range", gasReservePercent))
	}

	gasReserve := percentOf(amount, gasReservePercent)
	distributable := amount.Sub(gasReserve)

	items := make([]domain.DistributionItem, 0, len(beneficiaries))
	total := decimal.Zero
	for _, beneficiary := range beneficiaries {
		if beneficiary.PercentageShare < 0 || beneficiary.PercentageShare > 100 {
			return invalidPlan(fmt.Sprintf("%s has share %d%% out of range", beneficiary.Name, beneficiary.PercentageShare))
		}

		share := percentOf(distributable, beneficiary.PercentageShare)
		items = append(items, domain.DistributionItem{
			Beneficiary: beneficiary,
			Amount:      share,
		})
		total = total.Add(share)
	}

	// Safety check: never allocate more than is distributable
	if total.GreaterThan(distributable) {
		return invalidPlan(fmt.Sprintf("shares over-allocate: %s > %s", total, distributable))
	}

	return domain.DistributionPlan{
		Balance:            amount,
		GasReserve:         gasReserve,
		TotalDistributable: distributable,
		TotalAmount:        total,
		Items:              items,
		IsValid:            true,
	}
}

// percentOf returns amount * percent / 100, truncated to an integer
func percentOf(amount decimal.Decimal, percent int) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(int64(percent))).QuoRem(hundred, 0)
	return q
}

func invalidPlan(reason string) domain.DistributionPlan {
	return domain.DistributionPlan{
		Balance:            decimal.Zero,
		GasReserve:         decimal.Zero,
		TotalDistributable: decimal.Zero,
		TotalAmount:        decimal.Zero,
		Items:              []domain.DistributionItem{},
		IsValid:            false,
		InvalidReason:      reason,
	}
}

// FormatUnits renders a smallest-unit amount with the given token decimals,
// truncated (never rounded up) to places fractional digits.
// FormatUnits(665000000000000000, 18, 4) == "0.6650"
func FormatUnits(amount decimal.Decimal, decimals int32, places int32) string {
	return amount.Shift(-decimals).Truncate(places).StringFixed(places)
}
