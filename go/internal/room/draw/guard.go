// Package draw runs the one-time OPEN -> DRAWN transition of a room.
package draw

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/ledger"
	"github.com/mcdev12/todoroom/go/internal/room/matching"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

// DefaultMaxAttempts bounds how often a draw reloads after losing a version race.
const DefaultMaxAttempts = 3

var (
	ErrNotReady     = errors.New("room is not ready to draw")
	ErrAlreadyDrawn = errors.New("room already drawn")
	ErrDrawInternal = errors.New("draw failed")
)

// AlreadyDrawnError carries the published assignment of a drawn room.
type AlreadyDrawnError struct {
	Room *models.Room
}

func (e *AlreadyDrawnError) Error() string {
	return fmt.Sprintf("room %s already drawn", e.Room.ID)
}

func (e *AlreadyDrawnError) Is(target error) bool {
	return target == ErrAlreadyDrawn
}

// Assignment returns the assignment that was published for the room.
func (e *AlreadyDrawnError) Assignment() models.Assignment {
	return e.Room.Assignment()
}

// Store is what the guard needs from room persistence.
type Store interface {
	LoadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	// SaveAssignment stores winners, state and DrawnAt only if the room is
	// still OPEN at expectedVersion, together with the outbox events. It
	// bumps room.Version on success.
	SaveAssignment(ctx context.Context, room *models.Room, expectedVersion int64, outbox []events.OutboxEvent) error
}

// Guard gates and executes draws.
type Guard struct {
	store       Store
	clock       clockwork.Clock
	maxAttempts int
}

// NewGuard creates a Guard. A nil clock means the real clock.
func NewGuard(store Store, clock clockwork.Clock) *Guard {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Guard{
		store:       store,
		clock:       clock,
		maxAttempts: DefaultMaxAttempts,
	}
}

// Readiness reports why a room cannot be drawn, or nil if it can.
func Readiness(room *models.Room) error {
	if room.State == models.RoomStateDrawn {
		return &AlreadyDrawnError{Room: room}
	}
	roles, participants := room.RoleCount(), room.ParticipantCount()
	if participants != roles || roles != room.HeadCount {
		return fmt.Errorf("%w: %d participants, %d roles, head count %d",
			ErrNotReady, participants, roles, room.HeadCount)
	}
	return nil
}

// CanDraw reports whether a draw on the room would run.
func CanDraw(room *models.Room) bool {
	return Readiness(room) == nil
}

// Draw assigns every role of the room and publishes the result exactly once.
// A room that is already drawn yields an *AlreadyDrawnError carrying the
// stored assignment, never a recomputed one.
func (g *Guard) Draw(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	for attempt := 1; ; attempt++ {
		room, err := g.store.LoadRoom(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("failed to load room: %w", err)
		}

		if err := Readiness(room); err != nil {
			return nil, err
		}

		expectedVersion := room.Version
		if err := g.assign(room); err != nil {
			log.Error().
				Err(err).
				Str("room_id", roomID.String()).
				Msg("draw computation failed")
			return nil, err
		}

		event, err := events.New(room.ID, events.EventTypeRoomDrawn, events.NewRoomDrawnPayload(room), g.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDrawInternal, err)
		}

		err = g.store.SaveAssignment(ctx, room, expectedVersion, []events.OutboxEvent{event})
		if err == nil {
			log.Info().
				Str("room_id", roomID.String()).
				Str("matching_type", string(room.MatchingType)).
				Int("roles", room.RoleCount()).
				Msg("room drawn")
			return room, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("failed to save assignment: %w", err)
		}
		if attempt >= g.maxAttempts {
			return nil, fmt.Errorf("draw gave up after %d attempts: %w", attempt, err)
		}

		// lost the race, the reload decides between AlreadyDrawn and a retry
		log.Debug().
			Str("room_id", roomID.String()).
			Int("attempt", attempt).
			Msg("version conflict on draw, reloading")
	}
}

func (g *Guard) assign(room *models.Room) error {
	l, err := ledger.FromRoom(room)
	if err != nil {
		return fmt.Errorf("%w: rebuild ledger: %w", ErrDrawInternal, err)
	}

	assignment, err := matching.Assign(room.Roles, room.Participants, l.Matrix(), room.MatchingType)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDrawInternal, err)
	}

	room.ApplyAssignment(assignment)
	if err := matching.Verify(room.Roles, room.Participants, room.Assignment()); err != nil {
		return fmt.Errorf("%w: %w", ErrDrawInternal, err)
	}

	now := g.clock.Now().UTC()
	room.State = models.RoomStateDrawn
	room.DrawnAt = &now
	room.UpdatedAt = now
	l.Freeze()
	return nil
}
