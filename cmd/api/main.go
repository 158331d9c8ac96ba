package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicebill/internal/audit"
	"voicebill/internal/auth"
	"voicebill/internal/calls"
	"voicebill/internal/config"
	"voicebill/internal/httpapi"
	"voicebill/internal/ledger"
	"voicebill/internal/users"
	"voicebill/internal/wallet"
	"voicebill/pkg/logger"
	"voicebill/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
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

	// Persistence backend. Postgres is the durable store; memory keeps
	// everything in process for local runs.
	var (
		db          *sql.DB
		ledgerStore ledger.Store
		userRepo    users.Repository
		callRepo    calls.Repository
		auditRepo   audit.Repository
	)
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err = utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		ledgerStore = ledger.NewPostgresStore(db)
		userRepo = users.NewPostgresRepository(db)
		callRepo = calls.NewPostgresRepository(db)
		auditRepo = audit.NewPostgresRepo(db)
	case config.StoreBackendMemory:
		memLedger := ledger.NewMemoryStore()
		ledgerStore = memLedger
		userRepo = users.NewMemoryRepository()
		callRepo = calls.NewMemoryRepository(memLedger)
		auditRepo = audit.NewMemoryRepo()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		log.Error("unknown store backend", "backend", cfg.Store.Backend)
		os.Exit(1)
	}

	// Redis is optional: without it the rate limiter degrades to
	// per-process buckets.
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	}

	auditSvc := audit.NewService(auditRepo)
	userSvc := users.NewService(userRepo, ledgerStore, cfg.Billing.Currency)
	walletSvc := wallet.NewService(ledgerStore, auditSvc, cfg.Funding.PaymentURLBase)
	callSvc := calls.NewService(callRepo, ledgerStore, userSvc, auditSvc, cfg.Billing.RatePerMinute)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := &httpapi.Handlers{
		Auth:   authManager,
		Users:  userSvc,
		Wallet: walletSvc,
		Calls:  callSvc,
	}
	h.RegisterRoutes(r, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "backend", cfg.Store.Backend)
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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
