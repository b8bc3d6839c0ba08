package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/logger"
)

var errMalformed = errors.New("malformed interpretation")

// Service interprets a free-text manifesto into beneficiaries
type Service struct {
	Interpreter domain.IntentInterpreter
	Logger      *slog.Logger
}

// NewService creates a new Service instance
func NewService(interpreter domain.IntentInterpreter, log *slog.Logger) *Service {
	return &Service{
		Interpreter: interpreter,
		Logger:      logger.OrDefault(log),
	}
}

// Interpret never fails: when the interpreter is missing, errors out, or
// returns something unusable, the single fallback beneficiary is returned
// with the failure recorded in its memo.
func (s *Service) Interpret(ctx context.Context, text, locale string) []domain.Beneficiary {
	beneficiaries, err := s.interpret(ctx, text, locale)
	if err != nil {
		collabErr := &domain.CollaboratorError{Collaborator: "intent", Err: err}
		s.Logger.WarnContext(ctx, "manifesto interpretation failed, using fallback beneficiary",
			"error", collabErr,
		)
		return []domain.Beneficiary{Fallback(err)}
	}

	s.Logger.InfoContext(ctx, "manifesto interpreted", "beneficiaries", len(beneficiaries))
	return beneficiaries
}

func (s *Service) interpret(ctx context.Context, text, locale string) ([]domain.Beneficiary, error) {
	if s.Interpreter == nil {
		return nil, errors.New("no interpreter configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty manifesto", errMalformed)
	}

	beneficiaries, err := s.Interpreter.Interpret(ctx, text, locale)
	if err != nil {
		return nil, err
	}
	if len(beneficiaries) == 0 {
		return nil, fmt.Errorf("%w: no beneficiaries returned", errMalformed)
	}

	out := domain.CloneBeneficiaries(beneficiaries)
	for i := range out {
		out[i].Name = strings.TrimSpace(out[i].Name)
		out[i].PayoutAddress = strings.TrimSpace(out[i].PayoutAddress)
		if out[i].Name == "" {
			return nil, fmt.Errorf("%w: beneficiary %d has no name", errMalformed, i+1)
		}
		if out[i].PercentageShare < 0 || out[i].PercentageShare > 100 {
			return nil, fmt.Errorf("%w: %s has %d%%", errMalformed, out[i].Name, out[i].PercentageShare)
		}
	}
	return out, nil
}

// Fallback is the documented "unallocated funds" beneficiary
func Fallback(cause error) domain.Beneficiary {
	return domain.Beneficiary{
		Name:            domain.FallbackBeneficiaryName,
		Category:        domain.FallbackBeneficiaryCategory,
		PercentageShare: 100,
		PayoutAddress:   domain.FallbackBeneficiaryAddress,
		Memo:            fmt.Sprintf("Automatic fallback: AI interpretation failed. (%v)", cause),
	}
}

// IsFallback reports whether the list is the single fallback entry
func IsFallback(beneficiaries []domain.Beneficiary) bool {
	return len(beneficiaries) == 1 && beneficiaries[0].PayoutAddress == domain.FallbackBeneficiaryAddress
}
