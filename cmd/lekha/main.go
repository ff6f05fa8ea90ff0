package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/lekha-erp/lekha-erp/internal/allocation"
	"github.com/lekha-erp/lekha-erp/internal/app"
	"github.com/lekha-erp/lekha-erp/internal/audit"
	"github.com/lekha-erp/lekha-erp/internal/billing"
	"github.com/lekha-erp/lekha-erp/internal/journal"
	"github.com/lekha-erp/lekha-erp/internal/ledger"
	"github.com/lekha-erp/lekha-erp/internal/observability"
	"github.com/lekha-erp/lekha-erp/internal/periods"
	"github.com/lekha-erp/lekha-erp/internal/platform/cache"
	"github.com/lekha-erp/lekha-erp/internal/platform/db"
	"github.com/lekha-erp/lekha-erp/internal/security"
	"github.com/lekha-erp/lekha-erp/internal/shared"
	"github.com/lekha-erp/lekha-erp/jobs"
)

// accountResolver maps chart codes to account ids through the ledger service.
type accountResolver struct {
	ledger *ledger.Service
}

func (r accountResolver) ResolveCode(ctx context.Context, code string) (int64, error) {
	account, err := r.ledger.GetByCode(ctx, code)
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	alertClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := alertClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	ledgerRepo := ledger.NewRepository(dbpool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, auditLogger)

	securityDefaults := security.Defaults{
		MaxPinAttempts:  cfg.PinMaxAttempts,
		LockoutDuration: cfg.PinLockout,
	}
	securityRepo := security.NewRepository(dbpool)
	securitySettings := security.NewDefaultedSettings(securityRepo, securityDefaults)
	throttle := security.NewThrottle(redisClient).WithFallback(securityDefaults)
	securityService := security.NewService(securitySettings, throttle, alertClient, metrics, logger)
	securityHandler := security.NewHandler(logger, securityService, securityRepo)

	journalRepo := journal.NewRepository(dbpool)
	journalService := journal.NewService(journalRepo, auditLogger, metrics)
	journalHandler := journal.NewHandler(logger, journalService, journalRepo, securityService)

	periodsHandler := periods.NewHandler(logger, periodsService, securityService)

	allocationRepo := allocation.NewRepository(dbpool)
	allocationService := allocation.NewService(allocationRepo, metrics)
	allocationHandler := allocation.NewHandler(logger, allocationService, allocationRepo)

	billingRepo := billing.NewRepository(dbpool)
	billingService := billing.NewService(
		billingRepo,
		securityService,
		securitySettings,
		journalService,
		accountResolver{ledger: ledgerService},
		billing.DefaultAccountCodes(),
		auditLogger,
	)
	billingHandler := billing.NewHandler(logger, billingService)

	auditRepo := audit.NewPgRepository(dbpool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, securityService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		JournalHandler:    journalHandler,
		PeriodsHandler:    periodsHandler,
		BillingHandler:    billingHandler,
		SecurityHandler:   securityHandler,
		AllocationHandler: allocationHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
