package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubjectPrefix is the NATS subject namespace for room events.
const SubjectPrefix = "room.events"

// Envelope is the message published to the broker for each outbox event
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	RoomID    string          `json:"roomId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an outbox event for publishing
func NewEnvelope(event OutboxEvent) Envelope {
	return Envelope{
		EventID:   event.ID.String(),
		EventType: event.EventType,
		RoomID:    event.RoomID.String(),
		Timestamp: event.CreatedAt,
		Payload:   event.Payload,
	}
}

// Subject returns the subject an event of eventType is published on.
func Subject(eventType string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}
