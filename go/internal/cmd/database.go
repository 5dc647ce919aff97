package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/config"
	"github.com/mcdev12/todoroom/go/internal/room"
	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/outbox"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

// roomStore is everything the server needs from one storage backend
type roomStore interface {
	room.Store
	draw.Store
	outbox.Source
}

type storage struct {
	store roomStore
	// notifications is nil when the backend cannot push outbox ids
	notifications <-chan uuid.UUID
	run           func(ctx context.Context) error
	close         func()
}

func setupStorage(ctx context.Context, cfg config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return setupPostgres(ctx, cfg)
	default:
		repo, err := repository.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("using sqlite store")
		return &storage{
			store: repo,
			run:   func(context.Context) error { return nil },
			close: func() { _ = repo.Close() },
		}, nil
	}
}

func setupPostgres(ctx context.Context, cfg config.Config) (*storage, error) {
	dsn := cfg.DB.DSN()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := repository.NewPostgresRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	notifier, err := outbox.NewPQNotifier(outbox.DefaultNotifierConfig(dsn))
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("host", cfg.DB.Host).
		Str("database", cfg.DB.Database).
		Msg("connected to postgres")

	return &storage{
		store:         repo,
		notifications: notifier.IDs(),
		run:           notifier.Run,
		close:         pool.Close,
	}, nil
}
