package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/config"
	"github.com/mcdev12/todoroom/go/internal/room/gateway"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := config.SetupLogging(cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}
	if cfg.NATSURL == "" {
		log.Fatal().Msg("NATS_URL is required for the gateway")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, closeState, err := setupState(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open room store")
	}
	defer closeState()

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	consumer, err := gateway.NewEventConsumer(ctx, cm, gateway.DefaultConsumerConfig(cfg.NATSURL))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event consumer")
	}
	defer func() { _ = consumer.Stop() }()

	mux := http.NewServeMux()
	gateway.NewWebSocketHandler(cm, state).RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service":     "room-gateway",
			"connections": cm.Stats().TotalConnections,
		})
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.GatewayPort),
		Handler:     cors.AllowAll().Handler(mux),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go cm.Start(ctx)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer failed")
		}
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("room gateway starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("room gateway shutdown complete")
}

// setupState opens the room store read side for viewer snapshots.
func setupState(ctx context.Context, cfg config.Config) (gateway.StateProvider, func(), error) {
	if cfg.StorageDriver == config.DriverSQLite {
		repo, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return repository.NewPostgresRepository(pool), pool.Close, nil
}
