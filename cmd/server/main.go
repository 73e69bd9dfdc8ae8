package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/warband-backend/internal/battle"
	"github.com/DoyleJ11/warband-backend/internal/combat"
	"github.com/DoyleJ11/warband-backend/internal/config"
	"github.com/DoyleJ11/warband-backend/internal/dice"
	"github.com/DoyleJ11/warband-backend/internal/httpapi"
	"github.com/DoyleJ11/warband-backend/internal/hub"
	"github.com/DoyleJ11/warband-backend/internal/lobby"
	"github.com/DoyleJ11/warband-backend/internal/logger"
	"github.com/DoyleJ11/warband-backend/internal/session"
	"github.com/DoyleJ11/warband-backend/internal/store"
	"github.com/DoyleJ11/warband-backend/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if cfg.AutoMigrate {
		if err := store.AutoMigrate(db); err != nil {
			return err
		}
		lg.Info("database migrated")
	}
	st := store.New(db, lg)

	sessions, closeSessions, err := newSessionStore(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeSessions()

	roller := dice.NewRandomRoller()
	battles := battle.NewService(st, roller, lg)
	coord := combat.NewCoordinator(sessions, st, st, roller, lg)

	// Build the hub *with* the lobby dependencies injected
	h := hub.NewHub(ctx, lobby.Deps{Combat: coord, Goals: battles, Logger: lg})
	api := httpapi.NewAPI(battles, h, lg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(api, ws.Handler(h, lg)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		default:
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newSessionStore keeps combat sessions in redis when REDIS_URL is set and in
// process memory otherwise.
func newSessionStore(ctx context.Context, cfg *config.Config, lg *zap.Logger) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		lg.Info("combat sessions kept in memory")
		return session.NewMemory(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	lg.Info("combat sessions kept in redis", zap.String("addr", opts.Addr), zap.Duration("ttl", cfg.SessionTTL))
	return session.NewRedis(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
}
