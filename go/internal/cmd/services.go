package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/auth"
	"github.com/mcdev12/todoroom/go/internal/config"
	"github.com/mcdev12/todoroom/go/internal/room"
	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/outbox"
)

type Services struct {
	Room   *room.Service
	Issuer *auth.Issuer
	Relay  *outbox.Relay
	close  func()
}

func setupServices(ctx context.Context, cfg config.Config, presets *config.Presets, st *storage) (*Services, error) {
	// Store → Guard/App → Service
	clock := clockwork.NewRealClock()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL, clock)
	if err != nil {
		return nil, err
	}

	guard := draw.NewGuard(st.store, clock)
	roomApp := room.NewApp(st.store, guard, clock, presets.Defaults)
	roomService := room.NewService(roomApp)

	publisher, closePublisher, err := setupPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}

	relay := outbox.NewRelay(st.store, publisher, clock, outbox.Config{
		FallbackInterval: cfg.OutboxFallbackInterval,
		BatchSize:        cfg.OutboxBatchSize,
		MaxRetries:       outbox.DefaultConfig().MaxRetries,
		RetryDelay:       outbox.DefaultConfig().RetryDelay,
	})

	return &Services{
		Room:   roomService,
		Issuer: issuer,
		Relay:  relay,
		close:  closePublisher,
	}, nil
}

func setupPublisher(ctx context.Context, cfg config.Config) (outbox.Publisher, func(), error) {
	if cfg.NATSURL == "" {
		log.Warn().Msg("NATS_URL not set, room events are only logged")
		return outbox.LogPublisher{}, func() {}, nil
	}

	publisher, err := outbox.NewJetStreamPublisher(ctx, outbox.DefaultJetStreamConfig(cfg.NATSURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	return publisher, func() { _ = publisher.Close() }, nil
}
