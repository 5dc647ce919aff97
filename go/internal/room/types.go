package room

import (
	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

// RoleInput describes a role when a room is created
type RoleInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateRoomRequest represents a request to create a new room
type CreateRoomRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	HeadCount    int                 `json:"head_count"`
	PointCap     int                 `json:"point_cap"`
	MatchingType models.MatchingType `json:"matching_type"`
	Visibility   bool                `json:"visibility"`
	Password     string              `json:"password,omitempty"`
	Roles        []RoleInput         `json:"roles"`
}

// JoinRoomRequest represents a request to join a room with a bid vector
type JoinRoomRequest struct {
	RoomID   uuid.UUID        `json:"room_id"`
	Name     string           `json:"name"`
	Password string           `json:"password,omitempty"`
	Bids     []models.RoleBid `json:"bids"`
}

// DrawRequest represents a request to draw a room
type DrawRequest struct {
	RoomID   uuid.UUID `json:"room_id"`
	Password string    `json:"password,omitempty"`
}

// Defaults fill in fields a CreateRoomRequest leaves empty
type Defaults struct {
	PointCap     int                 `yaml:"point_cap"`
	MatchingType models.MatchingType `yaml:"matching_type"`
}

// StandardDefaults is used when no presets file is configured
func StandardDefaults() Defaults {
	return Defaults{
		PointCap:     100,
		MatchingType: models.MatchingTypeHighestFirst,
	}
}
