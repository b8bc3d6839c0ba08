package grpc

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/usecase/executor"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

// Amounts travel as decimal strings in smallest units.

func stringField(in *structpb.Struct, key string) string {
	return in.GetFields()[key].GetStringValue()
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// beneficiariesFromStruct reads the "beneficiaries" list of a request
func beneficiariesFromStruct(in *structpb.Struct) ([]domain.Beneficiary, error) {
	values := in.GetFields()["beneficiaries"].GetListValue().GetValues()
	out := make([]domain.Beneficiary, 0, len(values))
	for i, v := range values {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("beneficiaries[%d] must be an object", i)
		}
		share := item.GetFields()["percentage"].GetNumberValue()
		if share != float64(int(share)) {
			return nil, fmt.Errorf("beneficiaries[%d].percentage must be a whole number", i)
		}
		out = append(out, domain.Beneficiary{
			Name:            stringField(item, "name"),
			Category:        stringField(item, "category"),
			PercentageShare: int(share),
			PayoutAddress:   stringField(item, "walletAddress"),
			Memo:            stringField(item, "reason"),
		})
	}
	return out, nil
}

func beneficiariesToList(list []domain.Beneficiary) []any {
	out := make([]any, 0, len(list))
	for _, b := range list {
		out = append(out, map[string]any{
			"name":          b.Name,
			"category":      b.Category,
			"percentage":    b.PercentageShare,
			"walletAddress": b.PayoutAddress,
			"reason":        b.Memo,
		})
	}
	return out
}

func identityToMap(id domain.Identity) map[string]any {
	return map[string]any{
		"handle":        id.Handle,
		"locale":        id.Locale,
		"establishedAt": formatTime(id.EstablishedAt),
	}
}

func walletToMap(w domain.Wallet) map[string]any {
	return map[string]any{
		"address":  w.Address,
		"balance":  w.Balance.String(),
		"linkedAt": formatTime(w.LinkedAt),
	}
}

func pendingWillToMap(w *domain.PendingWill) any {
	if w == nil {
		return nil
	}
	return map[string]any{
		"id":                    w.ID.String(),
		"status":                string(w.Status),
		"beneficiaries":         beneficiariesToList(w.Beneficiaries),
		"manifesto":             w.ManifestoSnapshot,
		"balanceSnapshotAtSeal": w.BalanceSnapshotAtSeal.String(),
		"sealedAt":              formatTime(w.SealedAt),
		"durationMs":            w.Duration.Milliseconds(),
	}
}

func planToMap(p domain.DistributionPlan) map[string]any {
	items := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, map[string]any{
			"name":          item.Beneficiary.Name,
			"walletAddress": item.Beneficiary.PayoutAddress,
			"percentage":    item.Beneficiary.PercentageShare,
			"amount":        item.Amount.String(),
		})
	}
	return map[string]any{
		"valid":              p.IsValid,
		"invalidReason":      p.InvalidReason,
		"balance":            p.Balance.String(),
		"gasReserve":         p.GasReserve.String(),
		"totalDistributable": p.TotalDistributable.String(),
		"totalAmount":        p.TotalAmount.String(),
		"roundingLoss":       p.RoundingLoss().String(),
		"items":              items,
	}
}

func recordsToList(records []domain.TransferRecord) []any {
	out := make([]any, 0, len(records))
	for _, r := range records {
		out = append(out, map[string]any{
			"id":              r.ID.String(),
			"txHash":          r.TxHash,
			"from":            r.From,
			"to":              r.To,
			"amount":          r.Amount.String(),
			"timestamp":       formatTime(r.Timestamp),
			"status":          string(r.Status),
			"beneficiaryName": r.BeneficiaryName,
			"errorDetail":     r.ErrorDetail,
		})
	}
	return out
}

func resultToMap(res *executor.Result) map[string]any {
	out := map[string]any{
		"records":   recordsToList(res.Records),
		"succeeded": res.SucceededCount,
		"failed":    res.FailedCount,
	}
	if res.PersistErr != nil {
		out["persistError"] = res.PersistErr.Error()
	}
	return out
}

func eventsToList(events []domain.Event) []any {
	out := make([]any, 0, len(events))
	for _, e := range events {
		out = append(out, map[string]any{
			"id":        e.ID.String(),
			"kind":      e.Kind.String(),
			"timestamp": formatTime(e.Timestamp),
			"details":   e.Details,
		})
	}
	return out
}

func reportToMap(r domain.SentinelReport) map[string]any {
	return map[string]any{
		"status":    string(r.Status),
		"evidence":  r.Evidence,
		"timestamp": formatTime(r.Timestamp),
	}
}

func snapshotToMap(s will.Snapshot) map[string]any {
	wallets := make([]any, 0, len(s.Wallets))
	for _, w := range s.Wallets {
		wallets = append(wallets, walletToMap(w))
	}

	out := map[string]any{
		"status":            string(s.Status),
		"wallets":           wallets,
		"manifesto":         s.Manifesto,
		"beneficiaries":     beneficiariesToList(s.Beneficiaries),
		"pendingWill":       pendingWillToMap(s.PendingWill),
		"lastActive":        formatTime(s.LastActive),
		"daysSilent":        s.DaysSilent,
		"thresholdDays":     s.ThresholdDays,
		"countdownLeftMs":   s.CountdownLeft.Milliseconds(),
		"countdownProgress": s.CountdownProgress,
		"triggerReason":     s.TriggerReason,
		"executionInFlight": s.ExecutionInFlight,
	}
	if s.Identity != nil {
		out["identity"] = identityToMap(*s.Identity)
	}
	if s.Plan != nil {
		out["plan"] = planToMap(*s.Plan)
	}
	if s.Sentinel != nil {
		out["sentinel"] = reportToMap(*s.Sentinel)
	}
	if s.LastExecution != nil {
		out["lastExecution"] = map[string]any{
			"records":    recordsToList(s.LastExecution.Records),
			"succeeded":  s.LastExecution.SucceededCount,
			"failed":     s.LastExecution.FailedCount,
			"finishedAt": formatTime(s.LastExecution.FinishedAt),
		}
	}
	return out
}
