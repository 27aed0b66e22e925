package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"renthub-platform/internal/audit"
	"renthub-platform/internal/auth"
	"renthub-platform/internal/bankfeed"
	"renthub-platform/internal/config"
	"renthub-platform/internal/httpapi"
	"renthub-platform/internal/ledger"
	"renthub-platform/internal/notify"
	"renthub-platform/internal/payment"
	"renthub-platform/internal/reporting"
	"renthub-platform/internal/settlement"
	"renthub-platform/internal/withdrawal"
	"renthub-platform/pkg/logger"
	"renthub-platform/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Services over the Postgres stores. Settlement composes the payment
	// and ledger tables inside single transactions.
	bank := payment.BankAccount{
		BankName:      cfg.Bank.Name,
		AccountNumber: cfg.Bank.AccountNumber,
		HolderName:    cfg.Bank.HolderName,
	}
	payments := payment.NewService(payment.NewPostgresRepo(db), bank, payment.Settings{
		IntentTTL:      cfg.Payment.IntentTTL,
		MaxAmountMinor: cfg.Payment.MaxAmountMinor,
		CodeLength:     cfg.Payment.MatchingCodeLength,
	})
	if cfg.Payment.OpenIntentLimit > 0 {
		payments.WithLimiter(payment.NewRedisLimiter(rdb, cfg.Payment.OpenIntentLimit, cfg.Payment.IntentTTL))
	}

	reconciler := settlement.NewReconciler(
		settlement.NewPostgresStore(db),
		payments,
		notify.NewRedisNotifier(rdb),
		log,
	)

	h := httpapi.Handlers{
		Auth:        authManager,
		Payments:    payments,
		Ledger:      ledger.NewService(ledger.NewPostgresRepo(db)),
		Reconciler:  reconciler,
		Withdrawals: withdrawal.NewService(withdrawal.NewPostgresRepo(db)),
		Reports:     reporting.NewService(reporting.NewPostgresRepo(db)),
		Audit:       audit.NewService(audit.NewPostgresRepo(db)),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	// Background loops: the expiry sweep and, when a feed API is
	// configured, the poll consumer. Webhook pushes work either way.
	go reconciler.RunSweeper(rootCtx, cfg.Payment.SweepInterval)
	if cfg.Feed.APIURL != "" {
		consumer := bankfeed.NewConsumer(
			bankfeed.NewHTTPSource(cfg.Feed.APIURL, cfg.Feed.APIToken),
			reconciler,
			bankfeed.Options{
				PollInterval: cfg.Feed.PollInterval,
				BackoffBase:  cfg.Feed.BackoffBase,
				BackoffMax:   cfg.Feed.BackoffMax,
			},
			log,
		)
		go consumer.Run(rootCtx)
	} else {
		log.Warn("feed api not configured, relying on webhook pushes only")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
