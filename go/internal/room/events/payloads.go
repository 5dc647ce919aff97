package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

// Event payload types shared between the room packages and the gateway

const (
	EventTypeRoomCreated       = "RoomCreated"
	EventTypeParticipantJoined = "ParticipantJoined"
	EventTypeRoomDrawn         = "RoomDrawn"
)

// OutboxEvent is a room event waiting in, or read back from, the outbox table.
type OutboxEvent struct {
	ID        uuid.UUID       `json:"id"`
	RoomID    uuid.UUID       `json:"room_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}

// New marshals payload into an outbox event for a room.
func New(roomID uuid.UUID, eventType string, payload any, createdAt time.Time) (OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxEvent{
		ID:        uuid.New(),
		RoomID:    roomID,
		EventType: eventType,
		Payload:   data,
		CreatedAt: createdAt,
	}, nil
}

// RoomCreatedPayload is the payload for a RoomCreated event
type RoomCreatedPayload struct {
	RoomID       string    `json:"room_id"`
	Name         string    `json:"name"`
	HeadCount    int       `json:"head_count"`
	PointCap     int       `json:"point_cap"`
	MatchingType string    `json:"matching_type"`
	Visibility   bool      `json:"visibility"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipantJoinedPayload is the payload for a ParticipantJoined event
type ParticipantJoinedPayload struct {
	RoomID           string    `json:"room_id"`
	ParticipantID    string    `json:"participant_id"`
	ParticipantName  string    `json:"participant_name"`
	JoinOrder        int       `json:"join_order"`
	ParticipantCount int       `json:"participant_count"`
	HeadCount        int       `json:"head_count"`
	JoinedAt         time.Time `json:"joined_at"`
}

// WinnerPayload is one role and who won it
type WinnerPayload struct {
	RoleID          int64  `json:"role_id"`
	RoleName        string `json:"role_name"`
	ParticipantID   string `json:"participant_id"`
	ParticipantName string `json:"participant_name"`
}

// RoomDrawnPayload is the payload for a RoomDrawn event
type RoomDrawnPayload struct {
	RoomID       string          `json:"room_id"`
	MatchingType string          `json:"matching_type"`
	DrawnAt      time.Time       `json:"drawn_at"`
	Winners      []WinnerPayload `json:"winners"`
}

func NewRoomCreatedPayload(room *models.Room) RoomCreatedPayload {
	return RoomCreatedPayload{
		RoomID:       room.ID.String(),
		Name:         room.Name,
		HeadCount:    room.HeadCount,
		PointCap:     room.PointCap,
		MatchingType: string(room.MatchingType),
		Visibility:   room.Visibility,
		CreatedAt:    room.CreatedAt,
	}
}

func NewParticipantJoinedPayload(room *models.Room, p models.Participant) ParticipantJoinedPayload {
	return ParticipantJoinedPayload{
		RoomID:           room.ID.String(),
		ParticipantID:    p.ID.String(),
		ParticipantName:  p.Name,
		JoinOrder:        p.JoinOrder,
		ParticipantCount: room.ParticipantCount(),
		HeadCount:        room.HeadCount,
		JoinedAt:         p.JoinedAt,
	}
}

// NewRoomDrawnPayload lists winners in role order. The room must carry its
// winners and DrawnAt.
func NewRoomDrawnPayload(room *models.Room) RoomDrawnPayload {
	payload := RoomDrawnPayload{
		RoomID:       room.ID.String(),
		MatchingType: string(room.MatchingType),
		Winners:      make([]WinnerPayload, 0, len(room.Roles)),
	}
	if room.DrawnAt != nil {
		payload.DrawnAt = *room.DrawnAt
	}

	for _, role := range room.Roles {
		if role.Winner == nil {
			continue
		}
		winner := WinnerPayload{
			RoleID:        role.ID,
			RoleName:      role.Name,
			ParticipantID: role.Winner.String(),
		}
		if p, ok := room.Participant(*role.Winner); ok {
			winner.ParticipantName = p.Name
		}
		payload.Winners = append(payload.Winners, winner)
	}
	return payload
}
