package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/clock"
	"github.com/sileme/sileme-backend/internal/platform/logger"
	"github.com/sileme/sileme-backend/internal/platform/metrics"
)

const opExecute = "execute distribution"

// Result is the aggregate outcome of one pipeline run
type Result struct {
	Records        []domain.TransferRecord
	SucceededCount int
	FailedCount    int

	// PersistErr is set when the batch ran but the history store rejected it.
	// The transfers themselves already happened and are reported in Records.
	PersistErr error
}

// Succeeded returns the successful records in execution order
func (r *Result) Succeeded() []domain.TransferRecord {
	return r.filter(domain.TransferStatusSuccess)
}

// Failed returns the failed records in execution order
func (r *Result) Failed() []domain.TransferRecord {
	return r.filter(domain.TransferStatusFailed)
}

func (r *Result) filter(status domain.TransferStatus) []domain.TransferRecord {
	var out []domain.TransferRecord
	for _, rec := range r.Records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// Pipeline carries a validated distribution plan out against a ledger
type Pipeline struct {
	History domain.HistoryRepository
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewPipeline creates a new Pipeline instance
func NewPipeline(
	history domain.HistoryRepository,
	clk clock.Clock,
	log *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		History: history,
		Clock:   clk,
		Logger:  logger.OrDefault(log),
		Metrics: m,
		tracer:  otel.Tracer("github.com/sileme/sileme-backend/internal/usecase/executor"),
	}
}

// Execute attempts every plan item against the ledger
// Logic:
//  1. Fail fast with a PreconditionError if the plan is invalid or there is no signer
//  2. Transfer items strictly in plan order, one at a time
//     - success: record the returned tx hash
//     - failure: record the error detail and continue with the next item
//  3. Persist the whole batch to history in plan order
//  4. Return the aggregate; partial failure is an outcome, not an error
func (p *Pipeline) Execute(
	ctx context.Context,
	plan domain.DistributionPlan,
	from string,
	ledger domain.Ledger,
) (*Result, error) {
	// 1. Preconditions
	if err := checkPreconditions(plan, from, ledger); err != nil {
		p.Logger.ErrorContext(ctx, "execution aborted", "error", err)
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "executor.Execute",
		trace.WithAttributes(
			attribute.Int("plan.items", len(plan.Items)),
			attribute.String("plan.total", plan.TotalAmount.String()),
		))
	defer span.End()

	p.Metrics.IncExecution()
	p.Logger.InfoContext(ctx, "executing distribution",
		"items", len(plan.Items),
		"total", plan.TotalAmount.String(),
		"from", from,
	)

	// 2. Sequential transfers
	result := &Result{Records: make([]domain.TransferRecord, 0, len(plan.Items))}
	for i, item := range plan.Items {
		record := p.transfer(ctx, i, item, from, ledger)
		if record.Status == domain.TransferStatusSuccess {
			result.SucceededCount++
		} else {
			result.FailedCount++
		}
		result.Records = append(result.Records, record)
	}

	// 3. Persist in plan order
	if err := p.persist(ctx, result.Records); err != nil {
		result.PersistErr = err
		span.RecordError(err)
		p.Logger.ErrorContext(ctx, "failed to persist transfer history", "error", err)
	}

	span.SetAttributes(
		attribute.Int("result.succeeded", result.SucceededCount),
		attribute.Int("result.failed", result.FailedCount),
	)
	if result.FailedCount > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d transfers failed", result.FailedCount, len(plan.Items)))
	}

	p.Logger.InfoContext(ctx, "distribution finished",
		"succeeded", result.SucceededCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

// transfer performs one item and converts the outcome into a record
func (p *Pipeline) transfer(
	ctx context.Context,
	index int,
	item domain.DistributionItem,
	from string,
	ledger domain.Ledger,
) domain.TransferRecord {
	started := p.Clock.Now()
	hash, err := ledger.Transfer(ctx, item.Beneficiary.PayoutAddress, item.Amount)
	finished := p.Clock.Now()

	record := domain.TransferRecord{
		ID:              uuid.New(),
		From:            from,
		To:              item.Beneficiary.PayoutAddress,
		Amount:          item.Amount,
		Timestamp:       finished,
		BeneficiaryName: item.Beneficiary.Name,
	}

	if err == nil && hash == "" {
		err = errors.New("ledger returned an empty tx hash")
	}

	if err != nil {
		transferErr := &domain.TransferError{
			Beneficiary: item.Beneficiary.Name,
			Address:     item.Beneficiary.PayoutAddress,
			Err:         err,
		}
		record.Status = domain.TransferStatusFailed
		record.ErrorDetail = err.Error()

		p.Metrics.ObserveTransfer(string(domain.TransferStatusFailed), finished.Sub(started).Seconds())
		p.Logger.WarnContext(ctx, "transfer failed",
			"index", index,
			"error", transferErr,
		)
		return record
	}

	record.Status = domain.TransferStatusSuccess
	record.TxHash = hash

	p.Metrics.ObserveTransfer(string(domain.TransferStatusSuccess), finished.Sub(started).Seconds())
	p.Logger.InfoContext(ctx, "transfer sent",
		"index", index,
		"beneficiary", item.Beneficiary.Name,
		"to", item.Beneficiary.PayoutAddress,
		"amount", item.Amount.String(),
		"tx_hash", hash,
	)
	return record
}

func (p *Pipeline) persist(ctx context.Context, records []domain.TransferRecord) error {
	if p.History == nil {
		return nil
	}

	var errs []error
	for _, record := range records {
		if err := p.History.Append(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("append record for %s: %w", record.BeneficiaryName, err))
		}
	}
	return errors.Join(errs...)
}

func checkPreconditions(plan domain.DistributionPlan, from string, ledger domain.Ledger) error {
	if !plan.IsValid {
		reason := "plan is not valid"
		if plan.InvalidReason != "" {
			reason += ": " + plan.InvalidReason
		}
		return &domain.PreconditionError{Op: opExecute, Reason: reason}
	}
	if ledger == nil {
		return &domain.PreconditionError{Op: opExecute, Reason: "no ledger session available"}
	}
	if from == "" {
		return &domain.PreconditionError{Op: opExecute, Reason: "no signer address"}
	}
	return nil
}
