package repository

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrVersionConflict = errors.New("room was modified concurrently")
	ErrOutboxNotFound  = errors.New("outbox event not found or already sent")
)
