// Package matching assigns every participant of a full room to exactly one
// role, based on the points they bid.
//
// Both strategies are pure functions of their input: the same roles,
// participants (including join order) and bids always give the same
// assignment.
package matching

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

var (
	ErrPreconditionUnmet = errors.New("role and participant counts differ")
	ErrUnknownStrategy   = errors.New("unknown matching strategy")
	ErrInvariantViolated = errors.New("assignment is not a bijection")
)

// Bids maps participant id -> role id -> points.
type Bids map[uuid.UUID]map[int64]int

// Points returns the bid of a participant on a role, 0 when absent.
func (b Bids) Points(participantID uuid.UUID, roleID int64) int {
	return b[participantID][roleID]
}

// Strategy turns a room's bids into an assignment. Implementations may
// assume the inputs are sorted (roles by id, participants by join order)
// and have equal, non-zero length.
type Strategy interface {
	Assign(roles []models.Role, participants []models.Participant, bids Bids) models.Assignment
}

// StrategyFor returns the strategy implementing a matching type.
func StrategyFor(matchingType models.MatchingType) (Strategy, error) {
	switch matchingType {
	case models.MatchingTypeHighestFirst:
		return HighestFirst{}, nil
	case models.MatchingTypeDeferredRatio:
		return DeferredRatio{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, matchingType)
	}
}

// Assign runs the strategy selected by matchingType and checks the result.
func Assign(roles []models.Role, participants []models.Participant, bids Bids, matchingType models.MatchingType) (models.Assignment, error) {
	if len(roles) == 0 || len(roles) != len(participants) {
		return nil, fmt.Errorf("%w: %d roles, %d participants", ErrPreconditionUnmet, len(roles), len(participants))
	}

	strategy, err := StrategyFor(matchingType)
	if err != nil {
		return nil, err
	}

	sortedRoles := sortRoles(roles)
	sortedParticipants := sortParticipants(participants)

	assignment := strategy.Assign(sortedRoles, sortedParticipants, bids)
	if err := Verify(sortedRoles, sortedParticipants, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Verify checks that the assignment covers every role once and every
// participant once, and references nothing else.
func Verify(roles []models.Role, participants []models.Participant, assignment models.Assignment) error {
	if len(assignment) != len(roles) {
		return fmt.Errorf("%w: %d of %d roles assigned", ErrInvariantViolated, len(assignment), len(roles))
	}

	known := make(map[uuid.UUID]bool, len(participants))
	for _, p := range participants {
		known[p.ID] = false
	}

	for _, role := range roles {
		participantID, ok := assignment[role.ID]
		if !ok {
			return fmt.Errorf("%w: role %d has no winner", ErrInvariantViolated, role.ID)
		}
		used, exists := known[participantID]
		if !exists {
			return fmt.Errorf("%w: role %d won by unknown participant %s", ErrInvariantViolated, role.ID, participantID)
		}
		if used {
			return fmt.Errorf("%w: participant %s won twice", ErrInvariantViolated, participantID)
		}
		known[participantID] = true
	}
	return nil
}

func sortRoles(roles []models.Role) []models.Role {
	out := make([]models.Role, len(roles))
	copy(out, roles)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortParticipants(participants []models.Participant) []models.Participant {
	out := make([]models.Participant, len(participants))
	copy(out, participants)
	sort.SliceStable(out, func(i, j int) bool { return out[i].JoinOrder < out[j].JoinOrder })
	return out
}
