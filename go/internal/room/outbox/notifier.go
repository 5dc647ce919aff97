package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

type NotifierConfig struct {
	DatabaseURL  string // Postgres DSN for LISTEN/NOTIFY
	Channel      string
	PingInterval time.Duration
}

func DefaultNotifierConfig(databaseURL string) NotifierConfig {
	return NotifierConfig{
		DatabaseURL:  databaseURL,
		Channel:      repository.NotifyChannel,
		PingInterval: 90 * time.Second,
	}
}

// PQNotifier turns Postgres NOTIFY messages on the outbox channel into event ids.
type PQNotifier struct {
	listener *pq.Listener
	cfg      NotifierConfig
	ids      chan uuid.UUID
}

func NewPQNotifier(cfg NotifierConfig) (*PQNotifier, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.Channel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.Channel).
		Msg("listening for notifications")

	return &PQNotifier{
		listener: l,
		cfg:      cfg,
		ids:      make(chan uuid.UUID, 64),
	}, nil
}

// IDs delivers notified event ids. uuid.Nil means the connection was
// re-established and a sweep should pick up anything missed.
func (n *PQNotifier) IDs() <-chan uuid.UUID {
	return n.ids
}

// Run pumps notifications until ctx is done, then closes the listener.
func (n *PQNotifier) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(n.cfg.PingInterval)
	defer pingTicker.Stop()
	defer close(n.ids)

	for {
		select {
		case <-ctx.Done():
			return n.listener.Close()
		case note := <-n.listener.Notify:
			id := uuid.Nil
			if note != nil {
				parsed, err := uuid.Parse(note.Extra)
				if err != nil {
					log.Error().Err(err).Str("extra", note.Extra).Msg("invalid event ID in notification")
					continue
				}
				id = parsed
			}
			select {
			case n.ids <- id:
			case <-ctx.Done():
				return n.listener.Close()
			}
		case <-pingTicker.C:
			if err := n.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}
