package matching

import (
	"sort"

	"github.com/mcdev12/todoroom/go/internal/models"
)

// HighestFirst is a greedy auction: the highest remaining bid wins its role
// as long as neither side has been matched yet.
//
// It does not maximise total satisfaction. It follows the room owner's
// reading of "highest bidder per role wins".
type HighestFirst struct{}

type candidate struct {
	role        int // index into roles
	participant int // index into participants (join order)
	points      int
}

// Assign implements Strategy.
func (HighestFirst) Assign(roles []models.Role, participants []models.Participant, bids Bids) models.Assignment {
	candidates := make([]candidate, 0, len(roles)*len(participants))
	for r, role := range roles {
		for p, participant := range participants {
			candidates = append(candidates, candidate{
				role:        r,
				participant: p,
				points:      bids.Points(participant.ID, role.ID),
			})
		}
	}

	// points desc, then role id asc, then join order asc
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.points != b.points {
			return a.points > b.points
		}
		if a.role != b.role {
			return a.role < b.role
		}
		return a.participant < b.participant
	})

	roleTaken := make([]bool, len(roles))
	participantTaken := make([]bool, len(participants))
	assignment := make(models.Assignment, len(roles))

	for _, c := range candidates {
		if roleTaken[c.role] || participantTaken[c.participant] {
			continue
		}
		roleTaken[c.role] = true
		participantTaken[c.participant] = true
		assignment[roles[c.role].ID] = participants[c.participant].ID

		if len(assignment) == len(roles) {
			break
		}
	}
	return assignment
}
