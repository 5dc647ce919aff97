package repository

import "github.com/google/uuid"

// DefaultListLimit applies when a RoomFilter has no limit.
const DefaultListLimit = 50

// RoomFilter selects rooms for listing. Zero fields do not filter.
type RoomFilter struct {
	PublicOnly        bool
	OwnerID           *uuid.UUID
	ParticipantUserID *uuid.UUID
	Limit             int
}

func (f RoomFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}
