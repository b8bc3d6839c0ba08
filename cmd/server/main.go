package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	grpclib "google.golang.org/grpc"

	"github.com/sileme/sileme-backend/internal/adapter/events"
	grpcadapter "github.com/sileme/sileme-backend/internal/adapter/grpc"
	httpadapter "github.com/sileme/sileme-backend/internal/adapter/http"
	"github.com/sileme/sileme-backend/internal/adapter/ledger"
	"github.com/sileme/sileme-backend/internal/adapter/llm"
	"github.com/sileme/sileme-backend/internal/adapter/repository/bolt"
	"github.com/sileme/sileme-backend/internal/adapter/repository/memory"
	"github.com/sileme/sileme-backend/internal/adapter/repository/postgres"
	"github.com/sileme/sileme-backend/internal/adapter/repository/redis"
	"github.com/sileme/sileme-backend/internal/config"
	"github.com/sileme/sileme-backend/internal/domain"
	"github.com/sileme/sileme-backend/internal/platform/clock"
	"github.com/sileme/sileme-backend/internal/platform/logger"
	"github.com/sileme/sileme-backend/internal/platform/metrics"
	"github.com/sileme/sileme-backend/internal/usecase/executor"
	"github.com/sileme/sileme-backend/internal/usecase/intent"
	"github.com/sileme/sileme-backend/internal/usecase/sentinel"
	"github.com/sileme/sileme-backend/internal/usecase/will"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	checks := make(map[string]httpadapter.HealthCheck)

	// 1. Setup transfer history
	history, closeHistory, err := openHistory(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeHistory()
	log.Info("transfer history ready", "backend", cfg.History.Backend, "limit", cfg.History.Limit)

	// 2. Ledger
	initial, err := decimal.NewFromString(cfg.Ledger.InitialBalance)
	if err != nil {
		return fmt.Errorf("ledger initial balance: %w", err)
	}
	chain := ledger.NewSimulated(cfg.Ledger.AgentAddress, initial, cfg.Ledger.TransfersPerSec)

	// 3. Optional collaborators
	var (
		interpreter domain.IntentInterpreter
		scanner     domain.SentinelScanner
	)
	if cfg.AI.BaseURL != "" && cfg.AI.APIKey != "" {
		client, err := llm.NewClient(cfg.AI)
		if err != nil {
			return err
		}
		interpreter, scanner = client, client
		log.Info("AI collaborators enabled", "model", cfg.AI.Model)
	} else {
		log.Warn("AI_API_KEY not set; manifesto interpretation falls back, sentinel reports SECURE")
	}

	var publisher domain.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, client, err := events.DialKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = events.Fanout{kafka}
		checks["kafka"] = client.Ping
		log.Info("event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	// 4. Will machine
	clk := clock.Real{}
	m := metrics.New()
	machine, err := will.NewMachine(will.Config{
		InactivityThresholdDays: cfg.Will.InactivityThresholdDays,
		CountdownDuration:       cfg.Will.CountdownDuration,
		GasReservePercent:       cfg.Will.GasReservePercent,
		WatchInterval:           cfg.Will.WatchInterval,
		SentinelInterval:        cfg.Will.SentinelInterval,
		AgentAddress:            cfg.Ledger.AgentAddress,
	}, will.Deps{
		Clock:    clk,
		Ledger:   chain,
		Pipeline: executor.NewPipeline(history, clk, log, m),
		Intent:   intent.NewService(interpreter, log),
		Sentinel: sentinel.NewService(scanner, clk, log),
		History:  history,
		Journal:  memory.NewEventJournal(cfg.Will.EventJournalLimit),
		Events:   publisher,
		Logger:   log,
		Metrics:  m,
	})
	if err != nil {
		return fmt.Errorf("create will machine: %w", err)
	}
	defer machine.Close()

	// 5. Servers
	grpcServer := grpclib.NewServer(
		grpclib.ChainUnaryInterceptor(
			grpcadapter.LoggingInterceptor(log),
			grpcadapter.AuthInterceptor(cfg.APIToken),
		),
	)
	grpcadapter.RegisterWillServiceServer(grpcServer, grpcadapter.NewServer(machine))

	admin := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           httpadapter.NewHandler(machine, m.Registry, checks, log).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		log.Info("admin server listening", "addr", cfg.AdminAddr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return machine.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		machine.Close()
		grpcServer.GracefulStop()
		return admin.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openHistory builds the configured history backend and registers its health check
func openHistory(ctx context.Context, cfg config.Config, checks map[string]httpadapter.HealthCheck) (domain.HistoryRepository, func(), error) {
	switch cfg.History.Backend {
	case config.HistoryPostgres:
		db, err := postgres.NewDB(cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checks["postgres"] = db.PingContext
		return postgres.NewHistoryRepository(db, cfg.History.Limit), func() { _ = db.Close() }, nil

	case config.HistoryRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = client.Health
		return redis.NewHistoryRepository(client.Client, redis.DefaultHistoryKey, cfg.History.Limit), func() { _ = client.Close() }, nil

	case config.HistoryBolt:
		store, err := bolt.OpenHistoryStore(cfg.Bolt.Path, cfg.History.Limit)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return memory.NewHistoryRepository(cfg.History.Limit), func() {}, nil
	}
}
