// Package outbox relays committed room events from the outbox table to a broker.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

// Source is what the relay needs from the outbox table
type Source interface {
	FetchUnsentOutbox(ctx context.Context, limit int) ([]events.OutboxEvent, error)
	FetchOutboxByID(ctx context.Context, id uuid.UUID) (*events.OutboxEvent, error)
	MarkOutboxSent(ctx context.Context, id uuid.UUID) error
}

// Publisher delivers one event to the broker
type Publisher interface {
	Publish(ctx context.Context, event events.OutboxEvent) error
}

type Config struct {
	FallbackInterval time.Duration // How often to sweep for missed events
	BatchSize        int           // Max events per sweep
	MaxRetries       int
	RetryDelay       time.Duration
}

func DefaultConfig() Config {
	return Config{
		FallbackInterval: 30 * time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
	}
}

// Relay publishes outbox events when notified and on a fallback ticker.
type Relay struct {
	source    Source
	publisher Publisher
	clock     clockwork.Clock
	cfg       Config
}

func NewRelay(source Source, publisher Publisher, clock clockwork.Clock, cfg Config) *Relay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
	}
}

// Run sweeps once, then serves notifications and the fallback ticker until
// ctx is done. A nil channel disables notifications; uuid.Nil on the channel
// asks for a sweep.
func (r *Relay) Run(ctx context.Context, notifications <-chan uuid.UUID) error {
	log.Info().
		Dur("fallback_interval", r.cfg.FallbackInterval).
		Int("batch_size", r.cfg.BatchSize).
		Bool("notifications", notifications != nil).
		Msg("outbox relay started")

	ticker := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer ticker.Stop()

	if _, err := r.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("initial outbox sweep failed")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return nil
		case id, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if id == uuid.Nil {
				if _, err := r.Sweep(ctx); err != nil {
					log.Error().Err(err).Msg("outbox sweep failed")
				}
				continue
			}
			if err := r.handleNotification(ctx, id); err != nil {
				log.Error().Err(err).Str("event_id", id.String()).Msg("failed to handle notification")
			}
		case <-ticker.Chan():
			if _, err := r.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("outbox sweep failed")
			}
		}
	}
}

// Sweep publishes one batch of unsent events and returns how many went out.
func (r *Relay) Sweep(ctx context.Context) (int, error) {
	unsent, err := r.source.FetchUnsentOutbox(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	sent := 0
	for _, event := range unsent {
		if err := r.deliver(ctx, event); err != nil {
			log.Error().
				Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Msg("failed to deliver event")
			continue
		}
		sent++
	}

	if len(unsent) > 0 {
		log.Info().
			Int("sent", sent).
			Int("total", len(unsent)).
			Msg("processed outbox batch")
	}
	return sent, nil
}

// handleNotification publishes the event named by a notification. Events a
// sweep already sent are skipped.
func (r *Relay) handleNotification(ctx context.Context, id uuid.UUID) error {
	event, err := r.source.FetchOutboxByID(ctx, id)
	if errors.Is(err, repository.ErrOutboxNotFound) {
		log.Debug().Str("event_id", id.String()).Msg("event already sent")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}
	return r.deliver(ctx, *event)
}

func (r *Relay) deliver(ctx context.Context, event events.OutboxEvent) error {
	if err := r.publishWithRetry(ctx, event); err != nil {
		return err
	}
	if err := r.source.MarkOutboxSent(ctx, event.ID); err != nil {
		return fmt.Errorf("failed to mark outbox event as sent: %w", err)
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("room_id", event.RoomID.String()).
		Str("event_type", event.EventType).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry backs off linearly between attempts.
func (r *Relay) publishWithRetry(ctx context.Context, event events.OutboxEvent) error {
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 && r.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.clock.After(r.cfg.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
