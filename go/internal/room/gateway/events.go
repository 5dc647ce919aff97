package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
)

// EventType represents the type of a room event sent to viewers
type EventType string

const (
	EventTypeRoomCreated       EventType = events.EventTypeRoomCreated
	EventTypeParticipantJoined EventType = events.EventTypeParticipantJoined
	EventTypeRoomDrawn         EventType = events.EventTypeRoomDrawn
	// EventTypeRoomSnapshot is sent once when a viewer connects
	EventTypeRoomSnapshot EventType = "RoomSnapshot"
)

// RoomEvent is the frame written to WebSocket viewers
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// FromEnvelope converts a broker envelope into a viewer event.
func FromEnvelope(env events.Envelope) (uuid.UUID, *RoomEvent, error) {
	roomID, err := uuid.Parse(env.RoomID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("parse room ID: %w", err)
	}

	var eventType EventType
	switch env.EventType {
	case events.EventTypeRoomCreated:
		eventType = EventTypeRoomCreated
	case events.EventTypeParticipantJoined:
		eventType = EventTypeParticipantJoined
	case events.EventTypeRoomDrawn:
		eventType = EventTypeRoomDrawn
	default:
		return uuid.Nil, nil, fmt.Errorf("unknown event type: %s", env.EventType)
	}

	return roomID, &RoomEvent{
		ID:        env.EventID,
		RoomID:    env.RoomID,
		Type:      eventType,
		Timestamp: env.Timestamp,
		Data:      env.Payload,
	}, nil
}

// snapshotEvent carries the client view of the room, bids stay sealed until drawn.
func snapshotEvent(room *models.Room, now time.Time) (*RoomEvent, error) {
	data, err := json.Marshal(room.View())
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return &RoomEvent{
		ID:        uuid.NewString(),
		RoomID:    room.ID.String(),
		Type:      EventTypeRoomSnapshot,
		Timestamp: now,
		Data:      data,
	}, nil
}
