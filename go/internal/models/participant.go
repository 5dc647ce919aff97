package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant represents a person who joined a room.
type Participant struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	Name      string     `json:"name"`
	UserID    *uuid.UUID `json:"-"`          // set when the joiner was signed in
	JoinOrder int        `json:"join_order"` // 1-based, tie-break source only
	JoinedAt  time.Time  `json:"joined_at"`
}

// Bid is one participant's point allocation for one role.
type Bid struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	RoleID        int64     `json:"role_id"`
	Points        int       `json:"points"`
	Comment       *string   `json:"comment,omitempty"`
}

// RoleBid is a bid as submitted, before it is bound to a participant.
type RoleBid struct {
	RoleID  int64   `json:"role_id"`
	Points  int     `json:"points"`
	Comment *string `json:"comment,omitempty"`
}
