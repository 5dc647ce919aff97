package matching

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

func roles(n int) []models.Role {
	out := make([]models.Role, n)
	for i := range out {
		out[i] = models.Role{ID: int64(i + 1), Name: fmt.Sprintf("role-%d", i+1)}
	}
	return out
}

func participants(n int) []models.Participant {
	out := make([]models.Participant, n)
	for i := range out {
		out[i] = models.Participant{ID: uuid.New(), Name: fmt.Sprintf("p-%d", i+1), JoinOrder: i + 1}
	}
	return out
}

func TestAssign_Examples(t *testing.T) {
	rs := roles(3)
	a, b, c := rs[0].ID, rs[1].ID, rs[2].ID

	ps := participants(3)
	x, y, z := ps[0].ID, ps[1].ID, ps[2].ID

	tests := []struct {
		name         string
		roles        []models.Role
		participants []models.Participant
		bids         Bids
		want         models.Assignment
	}{
		{
			name:         "two roles, both want A",
			roles:        rs[:2],
			participants: ps[:2],
			bids: Bids{
				x: {a: 80, b: 20},
				y: {a: 60, b: 40},
			},
			want: models.Assignment{a: x, b: y},
		},
		{
			name:         "three roles, conflicting preferences",
			roles:        rs,
			participants: ps,
			bids: Bids{
				x: {a: 50, b: 40, c: 10},
				y: {a: 60, b: 10, c: 30},
				z: {a: 40, b: 35, c: 25},
			},
			want: models.Assignment{a: y, b: x, c: z},
		},
		{
			name:         "no bids falls back to join order",
			roles:        rs,
			participants: ps,
			bids:         Bids{},
			want:         models.Assignment{a: x, b: y, c: z},
		},
		{
			name:         "equal bids go to the earlier joiner",
			roles:        rs[:2],
			participants: ps[:2],
			bids: Bids{
				x: {a: 50, b: 50},
				y: {a: 50, b: 50},
			},
			want: models.Assignment{a: x, b: y},
		},
	}

	for _, strategy := range []models.MatchingType{models.MatchingTypeHighestFirst, models.MatchingTypeDeferredRatio} {
		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%s", strategy, tt.name), func(t *testing.T) {
				got, err := Assign(tt.roles, tt.participants, tt.bids, strategy)
				if err != nil {
					t.Fatalf("Assign() error = %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("Assign() mismatch (-want +got):\n%s", diff)
				}
			})
		}
	}
}

func TestAssign_InputOrderDoesNotMatter(t *testing.T) {
	rs := roles(3)
	ps := participants(3)
	bids := Bids{
		ps[0].ID: {1: 50, 2: 40, 3: 10},
		ps[1].ID: {1: 60, 2: 10, 3: 30},
		ps[2].ID: {1: 40, 2: 35, 3: 25},
	}

	want, err := Assign(rs, ps, bids, models.MatchingTypeHighestFirst)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	shuffledRoles := []models.Role{rs[2], rs[0], rs[1]}
	shuffledParticipants := []models.Participant{ps[1], ps[2], ps[0]}
	got, err := Assign(shuffledRoles, shuffledParticipants, bids, models.MatchingTypeHighestFirst)
	if err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Assign() depends on input order (-want +got):\n%s", diff)
	}
}

func TestAssign_PreconditionUnmet(t *testing.T) {
	tests := []struct {
		name         string
		roles        int
		participants int
	}{
		{name: "fewer participants", roles: 2, participants: 1},
		{name: "more participants", roles: 2, participants: 3},
		{name: "empty room", roles: 0, participants: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Assign(roles(tt.roles), participants(tt.participants), Bids{}, models.MatchingTypeHighestFirst)
			if !errors.Is(err, ErrPreconditionUnmet) {
				t.Fatalf("Assign() error = %v, want %v", err, ErrPreconditionUnmet)
			}
			if got != nil {
				t.Errorf("Assign() returned a partial assignment: %v", got)
			}
		})
	}
}

func TestAssign_UnknownStrategy(t *testing.T) {
	_, err := Assign(roles(1), participants(1), Bids{}, models.MatchingType("LOWEST_FIRST"))
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("Assign() error = %v, want %v", err, ErrUnknownStrategy)
	}
}

// Random rooms: both strategies return a bijection, the deferred result is
// stable, and repeated runs agree.
func TestAssign_RandomRooms(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		rs := roles(n)
		ps := participants(n)
		bids := randomBids(rng, rs, ps, 100)

		greedy, err := Assign(rs, ps, bids, models.MatchingTypeHighestFirst)
		if err != nil {
			t.Fatalf("room %d: HIGHEST_FIRST error = %v", i, err)
		}
		again, err := Assign(rs, ps, bids, models.MatchingTypeHighestFirst)
		if err != nil {
			t.Fatalf("room %d: HIGHEST_FIRST error = %v", i, err)
		}
		if diff := cmp.Diff(greedy, again); diff != "" {
			t.Fatalf("room %d: HIGHEST_FIRST not deterministic:\n%s", i, diff)
		}

		deferred, err := Assign(rs, ps, bids, models.MatchingTypeDeferredRatio)
		if err != nil {
			t.Fatalf("room %d: DEFERRED_RATIO error = %v", i, err)
		}
		if p, r, ok := blockingPair(rs, ps, bids, deferred); ok {
			t.Fatalf("room %d: participant %s and role %d block %v", i, p, r, deferred)
		}

		// Both sides rank by the same points, so the stable matching is
		// unique and the greedy walk finds it too.
		if diff := cmp.Diff(greedy, deferred); diff != "" {
			t.Fatalf("room %d: strategies disagree (-greedy +deferred):\n%s", i, diff)
		}
	}
}

func TestVerify(t *testing.T) {
	rs := roles(2)
	ps := participants(2)
	stranger := uuid.New()

	tests := []struct {
		name       string
		assignment models.Assignment
		wantErr    error
	}{
		{name: "bijection", assignment: models.Assignment{1: ps[0].ID, 2: ps[1].ID}},
		{name: "missing role", assignment: models.Assignment{1: ps[0].ID}, wantErr: ErrInvariantViolated},
		{name: "participant twice", assignment: models.Assignment{1: ps[0].ID, 2: ps[0].ID}, wantErr: ErrInvariantViolated},
		{name: "unknown participant", assignment: models.Assignment{1: ps[0].ID, 2: stranger}, wantErr: ErrInvariantViolated},
		{name: "unknown role", assignment: models.Assignment{1: ps[0].ID, 3: ps[1].ID}, wantErr: ErrInvariantViolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Verify(rs, ps, tt.assignment); !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func randomBids(rng *rand.Rand, rs []models.Role, ps []models.Participant, pointCap int) Bids {
	bids := make(Bids, len(ps))
	for _, p := range ps {
		remaining := pointCap
		vector := make(map[int64]int, len(rs))
		for _, r := range rs {
			if remaining == 0 || rng.Intn(4) == 0 {
				continue
			}
			// coarse steps so ties show up
			points := rng.Intn(remaining/10+1) * 10
			vector[r.ID] = points
			remaining -= points
		}
		bids[p.ID] = vector
	}
	return bids
}

// blockingPair looks for a participant and role that both prefer each other
// over what they were given.
func blockingPair(rs []models.Role, ps []models.Participant, bids Bids, assignment models.Assignment) (uuid.UUID, int64, bool) {
	roleOf := assignment.ParticipantRole()
	joinOrder := make(map[uuid.UUID]int, len(ps))
	for _, p := range ps {
		joinOrder[p.ID] = p.JoinOrder
	}

	participantPrefers := func(p uuid.UUID, r, current int64) bool {
		a, b := bids.Points(p, r), bids.Points(p, current)
		if a != b {
			return a > b
		}
		return r < current
	}
	rolePrefers := func(r int64, p, current uuid.UUID) bool {
		a, b := bids.Points(p, r), bids.Points(current, r)
		if a != b {
			return a > b
		}
		return joinOrder[p] < joinOrder[current]
	}

	for _, p := range ps {
		for _, r := range rs {
			if roleOf[p.ID] == r.ID {
				continue
			}
			if participantPrefers(p.ID, r.ID, roleOf[p.ID]) && rolePrefers(r.ID, p.ID, assignment[r.ID]) {
				return p.ID, r.ID, true
			}
		}
	}
	return uuid.Nil, 0, false
}
