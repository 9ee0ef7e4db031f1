// Package main is the entry point for the stockcore API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	"stockcore/internal/core/security"
	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/auth"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/reconcile"
	"stockcore/internal/domain/reports"
	"stockcore/internal/domain/salesreturn"
	v1 "stockcore/internal/infrastructure/http/v1"
	"stockcore/internal/infrastructure/storage/postgres"
	"stockcore/internal/infrastructure/storage/postgres/document_repo"
	"stockcore/internal/infrastructure/storage/postgres/ledger_repo"
	"stockcore/internal/infrastructure/storage/postgres/sales_repo"
	"stockcore/pkg/config"
	"stockcore/pkg/logger"
	"stockcore/pkg/numerator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting stockcore server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DatabaseURL)
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	if cfg.DB.MinConns > 0 {
		poolCfg.MinConns = cfg.DB.MinConns
	}
	if cfg.DB.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.DB.MaxConnLifetime
	}
	if cfg.DB.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.DB.MaxConnIdleTime
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Audit trail ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}
	defer auditService.Close()

	// --- Document numbering ---
	numbers := numerator.NewIssuer(numerator.New(txQuerier{txManager}))

	// --- Approval policy ---
	policy := security.DefaultApprovalPolicy()
	if expr := cfg.Policy.ApprovalExpression; expr != "" {
		policy, err = security.NewCELPolicy(expr)
		if err != nil {
			log.Fatalw("invalid approval policy expression", "error", err)
		}
	}

	// --- Repositories ---
	stockRepo := ledger_repo.NewStockRepo(txManager)
	adjustmentRepo := document_repo.NewAdjustmentRepo(txManager)
	returnRepo := document_repo.NewSalesReturnRepo(txManager)
	salesRepo := sales_repo.NewSalesRepo(txManager)

	// --- Domain services ---
	ledgerService := ledger.NewService(stockRepo, txManager)
	adjustmentService := adjustment.NewService(
		adjustmentRepo, ledgerService, txManager, numbers, policy, auditService,
	)
	tracker := salesreturn.NewTracker(salesRepo, returnRepo)
	returnService := salesreturn.NewService(
		returnRepo, salesRepo, tracker, ledgerService, txManager, numbers, policy, auditService,
	)
	facade := reconcile.NewFacade(ledgerService, adjustmentService, returnService)
	reportsService := reports.NewService(ledgerService)

	// --- JWT ---
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWT.Secret, cfg.JWT.Issuer))

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		Ledger:       ledgerService,
		Adjustments:  adjustmentService,
		Returns:      returnService,
		Facade:       facade,
		Reports:      reportsService,
	})

	// --- HTTP server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// txQuerier routes numerator queries through the active transaction when one
// is in the context, so a rolled-back document create does not burn a number.
type txQuerier struct {
	txm *postgres.TxManager
}

func (q txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}
