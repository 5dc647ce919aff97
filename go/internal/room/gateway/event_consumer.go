package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/outbox"
)

type ConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultConsumerConfig(url string) ConsumerConfig {
	return ConsumerConfig{
		URL:           url,
		StreamName:    "ROOM_EVENTS",
		ConsumerName:  "room-gateway",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer reads room events from JetStream and hands them to the
// connection manager.
type EventConsumer struct {
	cm       *ConnectionManager
	consumer jetstream.Consumer
	close    func()
	config   ConsumerConfig
}

func NewEventConsumer(ctx context.Context, cm *ConnectionManager, config ConsumerConfig) (*EventConsumer, error) {
	nc, err := outbox.Connect(config.URL, config.MaxReconnects, config.ReconnectWait)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, config.StreamName, jetstream.ConsumerConfig{
		Durable:       config.ConsumerName,
		Description:   "Room gateway WebSocket consumer",
		FilterSubject: events.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    config.MaxDeliver,
		AckWait:       config.AckWait,
		MaxAckPending: config.MaxAckPending,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}

	log.Info().
		Str("consumer", config.ConsumerName).
		Str("stream", config.StreamName).
		Msg("JetStream consumer ready")

	return &EventConsumer{cm: cm, consumer: consumer, close: nc.Close, config: config}, nil
}

// Start consumes until ctx is done
func (ec *EventConsumer) Start(ctx context.Context) error {
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		if err := ec.HandleMessage(msg.Data()); err != nil {
			log.Error().
				Err(err).
				Str("subject", msg.Subject()).
				Msg("failed to process message")
			// malformed envelopes are not redelivered
			if termErr := msg.Term(); termErr != nil {
				log.Error().Err(termErr).Msg("failed to TERM message")
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			log.Error().Err(ackErr).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	log.Info().Str("consumer", ec.config.ConsumerName).Msg("event consumer started")
	<-ctx.Done()
	log.Info().Msg("event consumer shutting down")
	return nil
}

// HandleMessage decodes one envelope and broadcasts it to the room's viewers
func (ec *EventConsumer) HandleMessage(data []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal event envelope: %w", err)
	}

	roomID, event, err := FromEnvelope(env)
	if err != nil {
		return err
	}
	ec.cm.BroadcastToRoom(roomID, event)

	log.Debug().
		Str("event_id", env.EventID).
		Str("room_id", env.RoomID).
		Str("event_type", env.EventType).
		Msg("event broadcasted to WebSocket clients")
	return nil
}

func (ec *EventConsumer) Stop() error {
	if ec.close != nil {
		ec.close()
	}
	return nil
}
