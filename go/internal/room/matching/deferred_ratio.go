package matching

import (
	"sort"

	"github.com/mcdev12/todoroom/go/internal/models"
)

// DeferredRatio is participant-proposing deferred acceptance. Preferences on
// both sides come from the bids:
//
//   - a participant ranks roles by their own points, ties by role id
//   - a role ranks participants by the points bid on it, ties by join order
//
// The result is the participant-optimal stable matching.
type DeferredRatio struct{}

// Assign implements Strategy.
func (DeferredRatio) Assign(roles []models.Role, participants []models.Participant, bids Bids) models.Assignment {
	n := len(roles)

	// prefs[p] lists role indexes, most preferred first
	prefs := make([][]int, len(participants))
	for p, participant := range participants {
		order := make([]int, n)
		for r := range order {
			order[r] = r
		}
		sort.SliceStable(order, func(i, j int) bool {
			return bids.Points(participant.ID, roles[order[i]].ID) > bids.Points(participant.ID, roles[order[j]].ID)
		})
		prefs[p] = order
	}

	// rank[r][p] is the position of participant p in role r's list, lower is better
	rank := make([][]int, n)
	for r, role := range roles {
		order := make([]int, len(participants))
		for p := range order {
			order[p] = p
		}
		sort.SliceStable(order, func(i, j int) bool {
			return bids.Points(participants[order[i]].ID, role.ID) > bids.Points(participants[order[j]].ID, role.ID)
		})
		rank[r] = make([]int, len(participants))
		for pos, p := range order {
			rank[r][p] = pos
		}
	}

	held := make([]int, n) // participant index held by each role, -1 when free
	for r := range held {
		held[r] = -1
	}
	next := make([]int, len(participants)) // next position in prefs to propose to

	free := make([]int, len(participants))
	for p := range free {
		free[p] = p
	}

	for len(free) > 0 {
		p := free[0]
		free = free[1:]

		r := prefs[p][next[p]]
		next[p]++

		current := held[r]
		switch {
		case current == -1:
			held[r] = p
		case rank[r][p] < rank[r][current]:
			held[r] = p
			free = append(free, current)
		default:
			free = append(free, p)
		}
	}

	assignment := make(models.Assignment, n)
	for r, p := range held {
		if p >= 0 {
			assignment[roles[r].ID] = participants[p].ID
		}
	}
	return assignment
}
