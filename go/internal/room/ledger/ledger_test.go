package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/mcdev12/todoroom/go/internal/models"
)

func testRoles() []models.Role {
	return []models.Role{
		{ID: 1, Name: "dishes"},
		{ID: 2, Name: "laundry"},
		{ID: 3, Name: "trash"},
	}
}

func strPtr(s string) *string { return &s }

func TestLedger_Record(t *testing.T) {
	tests := []struct {
		name    string
		bids    []models.RoleBid
		wantErr error
	}{
		{
			name: "within cap",
			bids: []models.RoleBid{{RoleID: 1, Points: 60}, {RoleID: 2, Points: 40}},
		},
		{
			name: "empty vector",
			bids: nil,
		},
		{
			name:    "over cap",
			bids:    []models.RoleBid{{RoleID: 1, Points: 60}, {RoleID: 2, Points: 41}},
			wantErr: ErrCapacityExceeded,
		},
		{
			name:    "unknown role",
			bids:    []models.RoleBid{{RoleID: 9, Points: 10}},
			wantErr: ErrUnknownRole,
		},
		{
			name:    "negative points",
			bids:    []models.RoleBid{{RoleID: 1, Points: -1}},
			wantErr: ErrInvalidPoints,
		},
		{
			name:    "duplicate role",
			bids:    []models.RoleBid{{RoleID: 1, Points: 10}, {RoleID: 1, Points: 10}},
			wantErr: ErrDuplicateRole,
		},
		{
			name:    "comment too long",
			bids:    []models.RoleBid{{RoleID: 1, Points: 10, Comment: strPtr(strings.Repeat("x", MaxCommentLength+1))}},
			wantErr: ErrCommentTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(testRoles(), 100)
			participant := uuid.New()

			err := l.Record(participant, tt.bids)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Record() error = %v, want %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				if got := l.Participants(); len(got) != 0 {
					t.Errorf("rejected vector left %d participants in the ledger", len(got))
				}
				for _, role := range testRoles() {
					if got := l.BidsFor(role.ID); len(got) != 0 {
						t.Errorf("rejected vector left bids on role %d", role.ID)
					}
				}
			}
		})
	}
}

func TestLedger_DuplicateParticipant(t *testing.T) {
	l := New(testRoles(), 100)
	participant := uuid.New()

	if err := l.Record(participant, []models.RoleBid{{RoleID: 1, Points: 50}}); err != nil {
		t.Fatalf("first Record() error = %v", err)
	}
	err := l.Record(participant, []models.RoleBid{{RoleID: 2, Points: 50}})
	if !errors.Is(err, ErrDuplicateParticipant) {
		t.Fatalf("second Record() error = %v, want %v", err, ErrDuplicateParticipant)
	}

	if got := l.Total(participant); got != 50 {
		t.Errorf("Total() = %d, want 50", got)
	}
}

func TestLedger_BidsForKeepsJoinOrder(t *testing.T) {
	l := New(testRoles(), 100)
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	mustRecord(t, l, first, []models.RoleBid{{RoleID: 1, Points: 10, Comment: strPtr("happy to")}})
	mustRecord(t, l, second, []models.RoleBid{{RoleID: 2, Points: 90}})
	mustRecord(t, l, third, []models.RoleBid{{RoleID: 1, Points: 70}})

	got := l.BidsFor(1)
	want := []Entry{
		{ParticipantID: first, Points: 10, Comment: strPtr("happy to")},
		{ParticipantID: third, Points: 70},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BidsFor(1) mismatch (-want +got):\n%s", diff)
	}
}

func TestLedger_VectorFillsZeros(t *testing.T) {
	l := New(testRoles(), 100)
	participant := uuid.New()
	mustRecord(t, l, participant, []models.RoleBid{{RoleID: 2, Points: 30}})

	want := map[int64]int{1: 0, 2: 30, 3: 0}
	if diff := cmp.Diff(want, l.Vector(participant)); diff != "" {
		t.Errorf("Vector() mismatch (-want +got):\n%s", diff)
	}
}

func TestLedger_Freeze(t *testing.T) {
	l := New(testRoles(), 100)
	l.Freeze()

	err := l.Record(uuid.New(), []models.RoleBid{{RoleID: 1, Points: 1}})
	if !errors.Is(err, ErrFrozen) {
		t.Fatalf("Record() on frozen ledger error = %v, want %v", err, ErrFrozen)
	}
}

func TestFromRoom(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	room := &models.Room{
		PointCap: 100,
		State:    models.RoomStateDrawn,
		Roles:    testRoles()[:2],
		Participants: []models.Participant{
			{ID: second, JoinOrder: 2},
			{ID: first, JoinOrder: 1},
		},
		Bids: []models.Bid{
			{ParticipantID: second, RoleID: 1, Points: 40},
			{ParticipantID: first, RoleID: 1, Points: 80},
			{ParticipantID: first, RoleID: 2, Points: 20},
		},
	}

	l, err := FromRoom(room)
	if err != nil {
		t.Fatalf("FromRoom() error = %v", err)
	}

	if diff := cmp.Diff([]uuid.UUID{first, second}, l.Participants()); diff != "" {
		t.Errorf("Participants() mismatch (-want +got):\n%s", diff)
	}
	if !l.Frozen() {
		t.Error("ledger of a drawn room should be frozen")
	}

	want := map[uuid.UUID]map[int64]int{
		first:  {1: 80, 2: 20},
		second: {1: 40, 2: 0},
	}
	if diff := cmp.Diff(want, l.Matrix()); diff != "" {
		t.Errorf("Matrix() mismatch (-want +got):\n%s", diff)
	}
}

func mustRecord(t *testing.T, l *Ledger, participant uuid.UUID, bids []models.RoleBid) {
	t.Helper()
	if err := l.Record(participant, bids); err != nil {
		t.Fatalf("Record(%s) error = %v", participant, err)
	}
}
