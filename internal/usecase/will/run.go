package will

import (
	"context"
	"time"

	"github.com/sileme/sileme-backend/internal/domain"
)

// Run drives the background watchers until ctx is done: the inactivity check
// every WatchInterval and the advisory sentinel scan every SentinelInterval.
// Only MONITORING is watched.
func (m *Machine) Run(ctx context.Context) error {
	watch := time.NewTicker(interval(m.cfg.WatchInterval, 10*time.Second))
	defer watch.Stop()
	scan := time.NewTicker(interval(m.cfg.SentinelInterval, 30*time.Second))
	defer scan.Stop()

	m.logger.InfoContext(ctx, "watcher agent started",
		"watch_interval", m.cfg.WatchInterval,
		"sentinel_interval", m.cfg.SentinelInterval,
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.InfoContext(ctx, "watcher agent stopped")
			return nil
		case <-m.ctx.Done():
			return nil
		case <-watch.C:
			m.CheckInactivity(ctx)
		case <-scan.C:
			if m.Status() != domain.ProtocolStatusMonitoring {
				continue
			}
			if _, err := m.ScanSentinel(ctx); err != nil {
				m.logger.DebugContext(ctx, "sentinel scan skipped", "error", err)
			}
		}
	}
}

// ScanSentinel runs one advisory scan for the established identity. The
// report is stored and journaled; it never changes the protocol status.
func (m *Machine) ScanSentinel(ctx context.Context) (domain.SentinelReport, error) {
	m.mu.Lock()
	if m.identity == nil {
		status := m.status
		m.mu.Unlock()
		return domain.SentinelReport{}, invalidTransition("sentinel scan", status)
	}
	handle := m.identity.Handle
	locale := m.locale()
	manifesto := m.manifesto
	if m.pending != nil {
		manifesto = m.pending.ManifestoSnapshot
	}
	m.mu.Unlock()

	m.emit(ctx, domain.EventAIThinking, "Sentinel system: scanning social feed for %s...", handle)
	report := m.sentinel.Scan(ctx, handle, manifesto, locale)

	m.mu.Lock()
	stored := report
	m.lastReport = &stored
	m.mu.Unlock()

	m.metrics.IncSentinelScan(string(report.Status))
	if report.Status == domain.SentinelStatusThreatDetected {
		m.emit(ctx, domain.EventAlert, "SENTINEL THREAT: %s", report.Evidence)
	} else {
		m.emit(ctx, domain.EventSentinel, "Scan clear. No duress signals found.")
	}
	return report, nil
}

func interval(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
