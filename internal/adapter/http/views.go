package httpadapter

import (
	"time"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

type beneficiaryView struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Percentage    int    `json:"percentage"`
	WalletAddress string `json:"walletAddress"`
	Reason        string `json:"reason,omitempty"`
}

type walletView struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type pendingWillView struct {
	ID                    string            `json:"id"`
	Status                string            `json:"status"`
	Beneficiaries         []beneficiaryView `json:"beneficiaries"`
	BalanceSnapshotAtSeal string            `json:"balanceSnapshotAtSeal"`
	SealedAt              time.Time         `json:"sealedAt"`
	DurationMs            int64             `json:"durationMs"`
}

type planItemView struct {
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress"`
	Amount        string `json:"amount"`
}

type planView struct {
	Valid              bool           `json:"valid"`
	InvalidReason      string         `json:"invalidReason,omitempty"`
	Balance            string         `json:"balance"`
	GasReserve         string         `json:"gasReserve"`
	TotalDistributable string         `json:"totalDistributable"`
	TotalAmount        string         `json:"totalAmount"`
	Items              []planItemView `json:"items"`
}

type recordView struct {
	ID              string    `json:"id"`
	TxHash          string    `json:"txHash,omitempty"`
	To              string    `json:"to"`
	Amount          string    `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`
	BeneficiaryName string    `json:"beneficiaryName"`
	ErrorDetail     string    `json:"errorDetail,omitempty"`
}

type eventView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details"`
}

type sentinelView struct {
	Status    string    `json:"status"`
	Evidence  string    `json:"evidence,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type statusView struct {
	Status            string            `json:"status"`
	Handle            string            `json:"handle,omitempty"`
	Wallets           []walletView      `json:"wallets"`
	Beneficiaries     []beneficiaryView `json:"beneficiaries"`
	PendingWill       *pendingWillView  `json:"pendingWill,omitempty"`
	LastActive        time.Time         `json:"lastActive"`
	DaysSilent        float64           `json:"daysSilent"`
	ThresholdDays     float64           `json:"thresholdDays"`
	CountdownLeftMs   int64             `json:"countdownLeftMs"`
	CountdownProgress float64           `json:"countdownProgress"`
	TriggerReason     string            `json:"triggerReason,omitempty"`
	Plan              *planView         `json:"plan,omitempty"`
	Sentinel          *sentinelView     `json:"sentinel,omitempty"`
	ExecutionInFlight bool              `json:"executionInFlight"`
}

func newBeneficiaryViews(list []domain.Beneficiary) []beneficiaryView {
	out := make([]beneficiaryView, 0, len(list))
	for _, b := range list {
		out = append(out, beneficiaryView{
			Name:          b.Name,
			Category:      b.Category,
			Percentage:    b.PercentageShare,
			WalletAddress: b.PayoutAddress,
			Reason:        b.Memo,
		})
	}
	return out
}

func newRecordViews(records []domain.TransferRecord) []recordView {
	out := make([]recordView, 0, len(records))
	for _, r := range records {
		out = append(out, recordView{
			ID:              r.ID.String(),
			TxHash:          r.TxHash,
			To:              r.To,
			Amount:          r.Amount.String(),
			Timestamp:       r.Timestamp,
			Status:          string(r.Status),
			BeneficiaryName: r.BeneficiaryName,
			ErrorDetail:     r.ErrorDetail,
		})
	}
	return out
}

func newStatusView(s will.Snapshot) statusView {
	v := statusView{
		Status:            string(s.Status),
		Wallets:           make([]walletView, 0, len(s.Wallets)),
		Beneficiaries:     newBeneficiaryViews(s.Beneficiaries),
		LastActive:        s.LastActive,
		DaysSilent:        s.DaysSilent,
		ThresholdDays:     s.ThresholdDays,
		CountdownLeftMs:   s.CountdownLeft.Milliseconds(),
		CountdownProgress: s.CountdownProgress,
		TriggerReason:     s.TriggerReason,
		ExecutionInFlight: s.ExecutionInFlight,
	}
	if s.Identity != nil {
		v.Handle = s.Identity.Handle
	}
	for _, w := range s.Wallets {
		v.Wallets = append(v.Wallets, walletView{Address: w.Address, Balance: w.Balance.String()})
	}
	if p := s.PendingWill; p != nil {
		v.PendingWill = &pendingWillView{
			ID:                    p.ID.String(),
			Status:                string(p.Status),
			Beneficiaries:         newBeneficiaryViews(p.Beneficiaries),
			BalanceSnapshotAtSeal: p.BalanceSnapshotAtSeal.String(),
			SealedAt:              p.SealedAt,
			DurationMs:            p.Duration.Milliseconds(),
		}
	}
	if p := s.Plan; p != nil {
		items := make([]planItemView, 0, len(p.Items))
		for _, item := range p.Items {
			items = append(items, planItemView{
				Name:          item.Beneficiary.Name,
				WalletAddress: item.Beneficiary.PayoutAddress,
				Amount:        item.Amount.String(),
			})
		}
		v.Plan = &planView{
			Valid:              p.IsValid,
			InvalidReason:      p.InvalidReason,
			Balance:            p.Balance.String(),
			GasReserve:         p.GasReserve.String(),
			TotalDistributable: p.TotalDistributable.String(),
			TotalAmount:        p.TotalAmount.String(),
			Items:              items,
		}
	}
	if r := s.Sentinel; r != nil {
		v.Sentinel = &sentinelView{Status: string(r.Status), Evidence: r.Evidence, Timestamp: r.Timestamp}
	}
	return v
}
