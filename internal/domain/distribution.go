package domain

import "github.com/shopspring/decimal"

// DistributionItem is the amount (smallest unit) owed to one beneficiary
type DistributionItem struct {
	Beneficiary Beneficiary
	Amount      decimal.Decimal
}

// DistributionPlan is derived from a live balance and never persisted as a source of truth.
// Items keep the beneficiary declaration order, which is also the execution order.
//
// Invariant: TotalAmount <= TotalDistributable. The difference is the rounding loss
// of integer division and is left unclaimed.
type DistributionPlan struct {
	Balance            decimal.Decimal
	GasReserve         decimal.Decimal
	TotalDistributable decimal.Decimal
	TotalAmount        decimal.Decimal
	Items              []DistributionItem
	IsValid            bool
	InvalidReason      string
}

// RoundingLoss returns the smallest units that integer division left unallocated
func (p DistributionPlan) RoundingLoss() decimal.Decimal {
	return p.TotalDistributable.Sub(p.TotalAmount)
}

// Clone returns a copy whose Items slice is not shared
func (p DistributionPlan) Clone() DistributionPlan {
	out := p
	if p.Items != nil {
		out.Items = make([]DistributionItem, len(p.Items))
		copy(out.Items, p.Items)
	}
	return out
}
