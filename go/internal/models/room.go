package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchingType defines how a room assigns roles on draw.
type MatchingType string

const (
	MatchingTypeHighestFirst  MatchingType = "HIGHEST_FIRST"
	MatchingTypeDeferredRatio MatchingType = "DEFERRED_RATIO"
)

// RoomState defines the lifecycle state of a room.
type RoomState string

const (
	RoomStateOpen  RoomState = "OPEN"
	RoomStateDrawn RoomState = "DRAWN"
)

// Role is a single todo inside a room.
type Role struct {
	ID          int64      `json:"id"` // 1-based ordinal inside the room
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Winner      *uuid.UUID `json:"winner,omitempty"` // nil until drawn
}

// Room represents one todo room and everything it owns.
type Room struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	HeadCount    int           `json:"head_count"`
	PointCap     int           `json:"point_cap"`
	MatchingType MatchingType  `json:"matching_type"`
	State        RoomState     `json:"state"`
	Visibility   bool          `json:"visibility"`
	OwnerID      *uuid.UUID    `json:"owner_id,omitempty"`
	PasswordHash string        `json:"-"`
	Roles        []Role        `json:"roles"`
	Participants []Participant `json:"participants"`
	Bids         []Bid         `json:"-"` // sealed until drawn, see View
	Version      int64         `json:"version"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	DrawnAt      *time.Time    `json:"drawn_at,omitempty"`
}

// RoleCount returns the number of roles in the room.
func (r *Room) RoleCount() int {
	return len(r.Roles)
}

// ParticipantCount returns the number of participants who joined.
func (r *Room) ParticipantCount() int {
	return len(r.Participants)
}

// IsFull reports whether every seat is taken.
func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.HeadCount
}

// Role looks up a role by id.
func (r *Room) Role(id int64) (*Role, bool) {
	for i := range r.Roles {
		if r.Roles[i].ID == id {
			return &r.Roles[i], true
		}
	}
	return nil, false
}

// Participant looks up a participant by id.
func (r *Room) Participant(id uuid.UUID) (*Participant, bool) {
	for i := range r.Participants {
		if r.Participants[i].ID == id {
			return &r.Participants[i], true
		}
	}
	return nil, false
}

// Assignment rebuilds the published assignment from role winners.
// It is empty for rooms that have not been drawn.
func (r *Room) Assignment() Assignment {
	out := make(Assignment, len(r.Roles))
	for _, role := range r.Roles {
		if role.Winner != nil {
			out[role.ID] = *role.Winner
		}
	}
	return out
}

// ApplyAssignment writes each winner onto its role.
func (r *Room) ApplyAssignment(a Assignment) {
	for i := range r.Roles {
		if winner, ok := a[r.Roles[i].ID]; ok {
			w := winner
			r.Roles[i].Winner = &w
		}
	}
}

// Assignment maps a role id to the participant who won it.
type Assignment map[int64]uuid.UUID

// ParticipantRole inverts the assignment.
func (a Assignment) ParticipantRole() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(a))
	for roleID, participantID := range a {
		out[participantID] = roleID
	}
	return out
}

// Clone returns a deep copy of the room.
func (r *Room) Clone() *Room {
	out := *r
	if r.OwnerID != nil {
		id := *r.OwnerID
		out.OwnerID = &id
	}
	if r.DrawnAt != nil {
		t := *r.DrawnAt
		out.DrawnAt = &t
	}

	out.Roles = make([]Role, len(r.Roles))
	for i, role := range r.Roles {
		if role.Winner != nil {
			w := *role.Winner
			role.Winner = &w
		}
		out.Roles[i] = role
	}

	out.Participants = make([]Participant, len(r.Participants))
	for i, p := range r.Participants {
		if p.UserID != nil {
			id := *p.UserID
			p.UserID = &id
		}
		out.Participants[i] = p
	}

	out.Bids = make([]Bid, len(r.Bids))
	for i, b := range r.Bids {
		if b.Comment != nil {
			c := *b.Comment
			b.Comment = &c
		}
		out.Bids[i] = b
	}
	return &out
}
