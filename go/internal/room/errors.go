package room

import (
	"errors"

	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/ledger"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomClosed      = errors.New("room is closed")
	ErrInvalidPassword = errors.New("invalid room password")
	ErrForbidden       = errors.New("caller may not do this")
	ErrUnauthenticated = errors.New("sign in required")
)

// Errors from the lower layers, re-exported so callers need one import.
var (
	ErrDuplicateParticipant = ledger.ErrDuplicateParticipant
	ErrRoomNotFound         = repository.ErrRoomNotFound
	ErrVersionConflict      = repository.ErrVersionConflict
	ErrNotReady             = draw.ErrNotReady
	ErrAlreadyDrawn         = draw.ErrAlreadyDrawn
)
