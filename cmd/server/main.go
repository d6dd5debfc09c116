// Package main is the entry point for the candle-rush arcade server.  It
// wires the round controller, chain client, and candle engine together and
// starts the HTTP server alongside the WebSocket hub and background clock.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/candlerush/arcade/internal/api"
	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/config"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/engine"
	"github.com/candlerush/arcade/internal/gateway"
	"github.com/candlerush/arcade/internal/reconcile"
	"github.com/candlerush/arcade/internal/repository"
	"github.com/candlerush/arcade/internal/round"
	"github.com/candlerush/arcade/internal/scheduler"
	"github.com/candlerush/arcade/internal/ws"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"golang.org/x/sync/errgroup"
)

func main() {
	// ── 1. Logger ─────────────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting candle-rush arcade server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Chain client ───────────────────────────────────────────────────────
	rpc := chain.NewRPCClient(cfg.Chain.RPCEndpoint,
		chain.WithTimeout(cfg.Chain.RequestTimeout))
	logger.Info("chain client ready", "endpoint", cfg.Chain.RPCEndpoint)

	// ── 5. Repository, gateway, reconciler ────────────────────────────────────
	roundRepo := repository.NewRoundRepository(db)
	gw := gateway.New(rpc, roundRepo, cfg.Reconcile.Network, logger)
	reconciler := reconcile.New(rpc, logger)

	// ── 6. Round controller ───────────────────────────────────────────────────
	ctrl := round.NewController(round.Config{
		StakeAmount:    cfg.Game.StakeAmount,
		MinBalance:     cfg.Game.MinBalance,
		FeeRate:        cfg.Game.FeeRate,
		PositionRatio:  cfg.Game.PositionRatio,
		StakeTimeout:   cfg.Game.StakeTimeout,
		RejectCooldown: cfg.Game.RejectCooldown,
		ReconcilePolicy: domain.RetryPolicy{
			Intervals: cfg.Reconcile.Intervals,
			Tolerance: cfg.Reconcile.Tolerance,
		},
	}, gw, reconciler, roundRepo, nil, logger)

	// Re-adopt a round that was staked but never settled before the last stop.
	if unsettled, err := roundRepo.LoadUnsettled(context.Background()); err != nil {
		logger.Error("load unsettled round failed", "err", err)
	} else if unsettled != nil {
		ctrl.Restore(unsettled)
	}

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub([]byte(cfg.Session.Secret), cfg.Server.AllowedOrigins)
	ctrl.SetNotifier(hub)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctrl.Start(ctx)

	go hub.Run()
	logger.Info("websocket hub started")

	// ── 9. Clock ──────────────────────────────────────────────────────────────
	feed := engine.NewFeed()
	sched := scheduler.New(ctrl, feed, rpc, hub, cfg, logger)
	sched.Start(ctx)

	// ── 10. HTTP router ───────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		Ctrl:    ctrl,
		Feed:    feed,
		Gateway: gw,
		Reader:  rpc,
		Repo:    roundRepo,
		Hub:     hub,
		Cfg:     cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 11. Run until signalled ───────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, draining connections")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
