package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestRoom_View(t *testing.T) {
	userID := uuid.New()
	joined := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Participant{ID: uuid.New(), RoomID: uuid.New(), Name: "Ana", UserID: &userID, JoinOrder: 1, JoinedAt: joined}
	bids := []Bid{{ParticipantID: p.ID, RoleID: 1, Points: 60}, {ParticipantID: p.ID, RoleID: 2, Points: 40}}

	tests := []struct {
		name     string
		state    RoomState
		wantBids []Bid
	}{
		{name: "open room seals bids", state: RoomStateOpen},
		{name: "drawn room shows bids", state: RoomStateDrawn, wantBids: bids},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := &Room{
				State:        tt.state,
				Roles:        []Role{{ID: 1, Name: "dishes"}, {ID: 2, Name: "trash"}},
				Participants: []Participant{p},
				Bids:         bids,
			}
			view := room.View()

			if diff := cmp.Diff(tt.wantBids, view.Bids); diff != "" {
				t.Errorf("Bids mismatch (-want +got):\n%s", diff)
			}
			want := []ParticipantView{{ID: p.ID, Name: "Ana", JoinOrder: 1, JoinedAt: joined}}
			if diff := cmp.Diff(want, view.Participants); diff != "" {
				t.Errorf("Participants mismatch (-want +got):\n%s", diff)
			}

			view.Roles[0].Name = "changed"
			if room.Roles[0].Name != "dishes" {
				t.Error("view shares roles with the room")
			}
		})
	}
}
