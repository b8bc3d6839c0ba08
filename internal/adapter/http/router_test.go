package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/metrics"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

// MockState is a mock implementation of StateReader for testing
type MockState struct {
	mock.Mock
}

func (m *MockState) Snapshot() will.Snapshot {
	args := m.Called()
	return args.Get(0).(will.Snapshot)
}

func (m *MockState) History(ctx context.Context) ([]domain.TransferRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransferRecord), args.Error(1)
}

func (m *MockState) Events(ctx context.Context) ([]domain.Event, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

var at = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func newTestHandler(state StateReader, checks map[string]HealthCheck) (http.Handler, *metrics.Metrics) {
	m := metrics.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(state, m.Registry, checks, log).Router(), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]HealthCheck
		code   int
		state  string
	}{
		{name: "no dependencies", code: http.StatusOK, state: "ok"},
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"redis": func(context.Context) error { return nil },
			},
			code:  http.StatusOK,
			state: "ok",
		},
		{
			name: "one failing",
			checks: map[string]HealthCheck{
				"redis":    func(context.Context) error { return nil },
				"postgres": func(context.Context) error { return errors.New("connection refused") },
			},
			code:  http.StatusServiceUnavailable,
			state: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(new(MockState), tt.checks)
			rec := get(t, h, "/healthz")

			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.state, body.Status)
			assert.Len(t, body.Checks, len(tt.checks))
		})
	}
}

func TestMetrics(t *testing.T) {
	h, m := newTestHandler(new(MockState), nil)
	m.IncHeartbeat()
	m.IncTrigger("countdown")

	rec := get(t, h, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sileme_heartbeats_total 1")
	assert.Contains(t, rec.Body.String(), `sileme_triggers_total{reason="countdown"} 1`)
}

func TestStatus(t *testing.T) {
	state := new(MockState)
	willID := uuid.New()
	state.On("Snapshot").Return(will.Snapshot{
		Status:   domain.ProtocolStatusActivated,
		Identity: &domain.Identity{Handle: "@alice", Locale: "en"},
		Wallets: []domain.Wallet{
			{Address: "0x9999999999999999999999999999999999999999", Balance: decimal.RequireFromString("1000000000000000000")},
		},
		PendingWill: &domain.PendingWill{
			ID:                    willID,
			Status:                domain.WillStatusExecuting,
			BalanceSnapshotAtSeal: decimal.RequireFromString("1000000000000000000"),
			SealedAt:              at,
			Duration:              30 * time.Second,
		},
		TriggerReason: will.ReasonCountdown,
		Plan: &domain.DistributionPlan{
			Balance:            decimal.RequireFromString("1000000000000000000"),
			GasReserve:         decimal.RequireFromString("50000000000000000"),
			TotalDistributable: decimal.RequireFromString("950000000000000000"),
			TotalAmount:        decimal.RequireFromString("950000000000000000"),
			IsValid:            true,
		},
	})
	h, _ := newTestHandler(state, nil)

	rec := get(t, h, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body statusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ACTIVATED", body.Status)
	assert.Equal(t, "@alice", body.Handle)
	require.NotNil(t, body.PendingWill)
	assert.Equal(t, willID.String(), body.PendingWill.ID)
	assert.Equal(t, int64(30000), body.PendingWill.DurationMs)
	require.NotNil(t, body.Plan)
	assert.Equal(t, "950000000000000000", body.Plan.TotalDistributable)
	assert.Equal(t, "countdown", body.TriggerReason)
}

func TestHistoryAndEvents(t *testing.T) {
	state := new(MockState)
	state.On("History", mock.Anything).Return([]domain.TransferRecord{
		{
			ID:              uuid.New(),
			TxHash:          "0xabc",
			To:              "0x1111111111111111111111111111111111111111",
			Amount:          decimal.RequireFromString("665000000000000000"),
			Timestamp:       at,
			Status:          domain.TransferStatusSuccess,
			BeneficiaryName: "Alice",
		},
	}, nil)
	state.On("Events", mock.Anything).Return(nil, errors.New("journal offline"))
	h, _ := newTestHandler(state, nil)

	rec := get(t, h, "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"amount":"665000000000000000"`)
	assert.Contains(t, rec.Body.String(), `"beneficiaryName":"Alice"`)

	rec = get(t, h, "/events")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "list events failed"))
}
