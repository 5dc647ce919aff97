package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomView is the shape of a room served to clients. Bids stay sealed
// until the room is drawn.
type RoomView struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	HeadCount    int               `json:"head_count"`
	PointCap     int               `json:"point_cap"`
	MatchingType MatchingType      `json:"matching_type"`
	State        RoomState         `json:"state"`
	Visibility   bool              `json:"visibility"`
	OwnerID      *uuid.UUID        `json:"owner_id,omitempty"`
	Roles        []Role            `json:"roles"`
	Participants []ParticipantView `json:"participants"`
	Bids         []Bid             `json:"bids,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DrawnAt      *time.Time        `json:"drawn_at,omitempty"`
}

// ParticipantView is a participant as other people see it.
type ParticipantView struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	JoinOrder int       `json:"join_order"`
	JoinedAt  time.Time `json:"joined_at"`
}

// View builds the client view of the room.
func (r *Room) View() *RoomView {
	c := r.Clone()
	view := &RoomView{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		HeadCount:    c.HeadCount,
		PointCap:     c.PointCap,
		MatchingType: c.MatchingType,
		State:        c.State,
		Visibility:   c.Visibility,
		OwnerID:      c.OwnerID,
		Roles:        c.Roles,
		Participants: make([]ParticipantView, len(c.Participants)),
		Version:      c.Version,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		DrawnAt:      c.DrawnAt,
	}
	for i, p := range c.Participants {
		view.Participants[i] = p.View()
	}
	if c.State == RoomStateDrawn {
		view.Bids = c.Bids
	}
	return view
}

// View strips the participant down to what other people may see.
func (p Participant) View() ParticipantView {
	return ParticipantView{
		ID:        p.ID,
		Name:      p.Name,
		JoinOrder: p.JoinOrder,
		JoinedAt:  p.JoinedAt,
	}
}

// Winners counts the roles that have a winner.
func (v *RoomView) Winners() int {
	n := 0
	for _, role := range v.Roles {
		if role.Winner != nil {
			n++
		}
	}
	return n
}
