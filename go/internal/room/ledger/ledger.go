// Package ledger records the bids participants submit when they join a room.
//
// A Ledger is bound to one room's role set and point cap. Each participant
// records their bid vector exactly once; the vector is validated as a whole
// before anything is written, so a rejected vector leaves the ledger
// untouched. Once the room is drawn the ledger is frozen.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

// MaxCommentLength is the longest comment accepted on a single bid, in runes.
const MaxCommentLength = 500

var (
	ErrCapacityExceeded     = errors.New("bid total exceeds room point cap")
	ErrUnknownRole          = errors.New("unknown role")
	ErrDuplicateParticipant = errors.New("participant already recorded bids")
	ErrDuplicateRole        = errors.New("role bid more than once")
	ErrInvalidPoints        = errors.New("points must not be negative")
	ErrCommentTooLong       = errors.New("comment too long")
	ErrFrozen               = errors.New("ledger is frozen")
)

// Entry is one participant's bid on a role, as read back from the ledger.
type Entry struct {
	ParticipantID uuid.UUID
	Points        int
	Comment       *string
}

// Ledger holds the bids of one room.
type Ledger struct {
	mu       sync.RWMutex
	pointCap int
	roles    map[int64]struct{}
	order    []uuid.UUID
	bids     map[uuid.UUID][]models.RoleBid
	frozen   bool
}

// New creates an empty ledger for the given roles and point cap.
func New(roles []models.Role, pointCap int) *Ledger {
	roleSet := make(map[int64]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role.ID] = struct{}{}
	}
	return &Ledger{
		pointCap: pointCap,
		roles:    roleSet,
		bids:     make(map[uuid.UUID][]models.RoleBid),
	}
}

// FromRoom rebuilds a ledger from a stored room snapshot. Participants are
// replayed in join order. A drawn room yields a frozen ledger.
func FromRoom(room *models.Room) (*Ledger, error) {
	l := New(room.Roles, room.PointCap)

	byParticipant := make(map[uuid.UUID][]models.RoleBid, len(room.Participants))
	for _, bid := range room.Bids {
		byParticipant[bid.ParticipantID] = append(byParticipant[bid.ParticipantID], models.RoleBid{
			RoleID:  bid.RoleID,
			Points:  bid.Points,
			Comment: bid.Comment,
		})
	}

	for _, p := range sortedByJoinOrder(room.Participants) {
		if err := l.Record(p.ID, byParticipant[p.ID]); err != nil {
			return nil, fmt.Errorf("replay participant %s: %w", p.ID, err)
		}
	}

	if room.State == models.RoomStateDrawn {
		l.Freeze()
	}
	return l, nil
}

// Validate checks a bid vector against the room without recording it.
func (l *Ledger) Validate(bids []models.RoleBid) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validate(bids)
}

// Record validates and stores the bid vector of a participant.
func (l *Ledger) Record(participantID uuid.UUID, bids []models.RoleBid) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return ErrFrozen
	}
	if _, exists := l.bids[participantID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, participantID)
	}
	if err := l.validate(bids); err != nil {
		return err
	}

	stored := make([]models.RoleBid, len(bids))
	copy(stored, bids)
	l.bids[participantID] = stored
	l.order = append(l.order, participantID)
	return nil
}

// BidsFor returns every bid placed on a role, in join order. Participants
// who did not bid on the role are skipped.
func (l *Ledger) BidsFor(roleID int64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for _, participantID := range l.order {
		for _, bid := range l.bids[participantID] {
			if bid.RoleID == roleID {
				out = append(out, Entry{ParticipantID: participantID, Points: bid.Points, Comment: bid.Comment})
				break
			}
		}
	}
	return out
}

// Vector returns the full bid vector of a participant with unbid roles at 0.
func (l *Ledger) Vector(participantID uuid.UUID) map[int64]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.vector(participantID)
}

// Matrix returns the full bid vector of every participant.
func (l *Ledger) Matrix() map[uuid.UUID]map[int64]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[uuid.UUID]map[int64]int, len(l.order))
	for _, participantID := range l.order {
		out[participantID] = l.vector(participantID)
	}
	return out
}

// Participants returns recorded participant ids in join order.
func (l *Ledger) Participants() []uuid.UUID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]uuid.UUID, len(l.order))
	copy(out, l.order)
	return out
}

// Total returns the points a participant spent.
func (l *Ledger) Total(participantID uuid.UUID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, bid := range l.bids[participantID] {
		total += bid.Points
	}
	return total
}

// Freeze stops the ledger from accepting further bids.
func (l *Ledger) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// Frozen reports whether the ledger still accepts bids.
func (l *Ledger) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

func (l *Ledger) validate(bids []models.RoleBid) error {
	seen := make(map[int64]struct{}, len(bids))
	total := 0
	for _, bid := range bids {
		if _, ok := l.roles[bid.RoleID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownRole, bid.RoleID)
		}
		if _, dup := seen[bid.RoleID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateRole, bid.RoleID)
		}
		seen[bid.RoleID] = struct{}{}

		if bid.Points < 0 {
			return fmt.Errorf("%w: role %d has %d", ErrInvalidPoints, bid.RoleID, bid.Points)
		}
		if bid.Comment != nil && utf8.RuneCountInString(*bid.Comment) > MaxCommentLength {
			return fmt.Errorf("%w: role %d", ErrCommentTooLong, bid.RoleID)
		}
		total += bid.Points
	}

	if total > l.pointCap {
		return fmt.Errorf("%w: %d > %d", ErrCapacityExceeded, total, l.pointCap)
	}
	return nil
}

func (l *Ledger) vector(participantID uuid.UUID) map[int64]int {
	out := make(map[int64]int, len(l.roles))
	for roleID := range l.roles {
		out[roleID] = 0
	}
	for _, bid := range l.bids[participantID] {
		out[bid.RoleID] = bid.Points
	}
	return out
}

func sortedByJoinOrder(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinOrder < out[j].JoinOrder
	})
	return out
}
