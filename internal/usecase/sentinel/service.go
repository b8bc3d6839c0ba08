package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/clock"
	"github.com/sileme/sileme-backend/internal/platform/logger"
)

// Service runs advisory compromise scans.
// A report never changes the protocol status.
type Service struct {
	Scanner domain.SentinelScanner
	Clock   clock.Clock
	Logger  *slog.Logger
}

// NewService creates a new Service instance
func NewService(scanner domain.SentinelScanner, clk clock.Clock, log *slog.Logger) *Service {
	return &Service{
		Scanner: scanner,
		Clock:   clk,
		Logger:  logger.OrDefault(log),
	}
}

// Scan returns the scanner's verdict, degrading to SECURE when the scanner
// is missing, fails, or answers with an unknown status.
func (s *Service) Scan(ctx context.Context, handle, manifesto, locale string) domain.SentinelReport {
	report, err := s.scan(ctx, handle, manifesto, locale)
	if err != nil {
		collabErr := &domain.CollaboratorError{Collaborator: "sentinel", Err: err}
		s.Logger.WarnContext(ctx, "sentinel scan failed, reporting secure", "handle", handle, "error", collabErr)
		return domain.SentinelReport{
			Status:    domain.SentinelStatusSecure,
			Timestamp: s.Clock.Now(),
		}
	}

	if report.Timestamp.IsZero() {
		report.Timestamp = s.Clock.Now()
	}
	if report.Status == domain.SentinelStatusThreatDetected {
		s.Logger.WarnContext(ctx, "sentinel detected a threat", "handle", handle, "evidence", report.Evidence)
	}
	return report
}

func (s *Service) scan(ctx context.Context, handle, manifesto, locale string) (domain.SentinelReport, error) {
	if s.Scanner == nil {
		return domain.SentinelReport{}, errors.New("no scanner configured")
	}

	report, err := s.Scanner.Scan(ctx, handle, manifesto, locale)
	if err != nil {
		return domain.SentinelReport{}, err
	}

	switch report.Status {
	case domain.SentinelStatusSecure, domain.SentinelStatusThreatDetected:
		return report, nil
	default:
		return domain.SentinelReport{}, fmt.Errorf("unknown sentinel status %q", report.Status)
	}
}
