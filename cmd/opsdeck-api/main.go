package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"opsdeck/internal/config"
	"opsdeck/internal/explorer"
	"opsdeck/internal/health"
	server "opsdeck/internal/http"
	"opsdeck/internal/migrate"
	"opsdeck/internal/query"
	"opsdeck/internal/queue"
	"opsdeck/internal/store"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	// Run migrations on a short-lived connection
	if err := migrate.Run(cfg.Database.DSN); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// Shared *sql.DB with pooling; every component runs short-lived
	// queries on this pool, never long-lived transactions.
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db failed: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	// Ensure initial admin API key if configured
	if cfg.Auth.Enabled && cfg.Auth.InitialAdminKey != "" {
		if _, err := st.EnsureAdminAPIKey(context.Background(), cfg.Auth.InitialAdminKey, "initial-admin"); err != nil {
			log.Fatalf("ensure admin api key failed: %v", err)
		}
	}

	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("parse redis url failed: %v", err)
	}
	rdb := redis.NewClient(opt)

	inspector := queue.NewInspector(
		queue.NewRedisClient(rdb, cfg.Queues.Prefix),
		cfg.Queues.Names,
		cfg.Pagination,
	)

	probeTimeout := time.Duration(cfg.Health.ProbeTimeoutMs) * time.Millisecond
	aggregator := health.NewAggregator(probeTimeout,
		health.CacheProbe(rdb, cfg.Health),
		health.DatabaseProbe(db, cfg.Health),
		health.QueueProbe(inspector, cfg.Health),
		health.ResourceProbe(cfg.Health),
	)

	exp := explorer.New(explorer.NewPGCatalog(db), explorer.NewDBReader(db), cfg.Pagination)

	stmtTimeout := time.Duration(cfg.Gateway.StatementTimeoutMs) * time.Millisecond
	gateway := query.New(query.NewDBRunner(db, stmtTimeout), exp, cfg.Gateway)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	s := server.NewServer(cfg, server.Deps{
		Store:    st,
		Queues:   inspector,
		Health:   aggregator,
		Explorer: exp,
		Gateway:  gateway,
	}, logger)

	// Serve until interrupted, then drain.
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Listen()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(ctx); err != nil {
			log.Fatalf("shutdown failed: %v", err)
		}
	}
}
