package draw

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

type memStore struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]*models.Room
	outbox []events.OutboxEvent
	saves  int

	// beforeSave runs once, before the first SaveAssignment applies
	beforeSave func()
}

func newMemStore(rooms ...*models.Room) *memStore {
	s := &memStore{rooms: make(map[uuid.UUID]*models.Room)}
	for _, r := range rooms {
		s.rooms[r.ID] = r.Clone()
	}
	return s
}

func (s *memStore) LoadRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *memStore) SaveAssignment(_ context.Context, room *models.Room, expectedVersion int64, outbox []events.OutboxEvent) error {
	if hook := s.takeHook(); hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.rooms[room.ID]
	if current.State != models.RoomStateOpen || current.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	room.Version = expectedVersion + 1
	s.rooms[room.ID] = room.Clone()
	s.outbox = append(s.outbox, outbox...)
	s.saves++
	return nil
}

func (s *memStore) takeHook() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.beforeSave
	s.beforeSave = nil
	return hook
}

func (s *memStore) set(room *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room.Clone()
}

func fullRoom(matchingType models.MatchingType) *models.Room {
	x, y := uuid.New(), uuid.New()
	return &models.Room{
		ID:           uuid.New(),
		Name:         "flat chores",
		HeadCount:    2,
		PointCap:     100,
		MatchingType: matchingType,
		State:        models.RoomStateOpen,
		Roles: []models.Role{
			{ID: 1, Name: "A"},
			{ID: 2, Name: "B"},
		},
		Participants: []models.Participant{
			{ID: x, Name: "X", JoinOrder: 1},
			{ID: y, Name: "Y", JoinOrder: 2},
		},
		Bids: []models.Bid{
			{ParticipantID: x, RoleID: 1, Points: 80},
			{ParticipantID: x, RoleID: 2, Points: 20},
			{ParticipantID: y, RoleID: 1, Points: 60},
			{ParticipantID: y, RoleID: 2, Points: 40},
		},
		Version: 3,
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.Room)
		wantErr error
	}{
		{name: "full room", mutate: func(r *models.Room) {}},
		{
			name:    "under-subscribed",
			mutate:  func(r *models.Room) { r.Participants = r.Participants[:1] },
			wantErr: ErrNotReady,
		},
		{
			name:    "head count disagrees",
			mutate:  func(r *models.Room) { r.HeadCount = 3 },
			wantErr: ErrNotReady,
		},
		{
			name: "over-subscribed",
			mutate: func(r *models.Room) {
				r.Participants = append(r.Participants, models.Participant{ID: uuid.New(), JoinOrder: 3})
			},
			wantErr: ErrNotReady,
		},
		{
			name:    "drawn",
			mutate:  func(r *models.Room) { r.State = models.RoomStateDrawn },
			wantErr: ErrAlreadyDrawn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room := fullRoom(models.MatchingTypeHighestFirst)
			tt.mutate(room)

			err := Readiness(room)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Readiness() error = %v, want %v", err, tt.wantErr)
			}
			if got, want := CanDraw(room), tt.wantErr == nil; got != want {
				t.Errorf("CanDraw() = %v, want %v", got, want)
			}
		})
	}
}

func TestGuard_Draw(t *testing.T) {
	for _, matchingType := range []models.MatchingType{models.MatchingTypeHighestFirst, models.MatchingTypeDeferredRatio} {
		t.Run(string(matchingType), func(t *testing.T) {
			room := fullRoom(matchingType)
			store := newMemStore(room)
			clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
			guard := NewGuard(store, clock)

			drawn, err := guard.Draw(context.Background(), room.ID)
			if err != nil {
				t.Fatalf("Draw() error = %v", err)
			}

			want := models.Assignment{1: room.Participants[0].ID, 2: room.Participants[1].ID}
			if diff := cmp.Diff(want, drawn.Assignment()); diff != "" {
				t.Errorf("assignment mismatch (-want +got):\n%s", diff)
			}
			if drawn.State != models.RoomStateDrawn {
				t.Errorf("State = %s, want %s", drawn.State, models.RoomStateDrawn)
			}
			if drawn.DrawnAt == nil || !drawn.DrawnAt.Equal(clock.Now()) {
				t.Errorf("DrawnAt = %v, want %v", drawn.DrawnAt, clock.Now())
			}
			if drawn.Version != room.Version+1 {
				t.Errorf("Version = %d, want %d", drawn.Version, room.Version+1)
			}

			if len(store.outbox) != 1 || store.outbox[0].EventType != events.EventTypeRoomDrawn {
				t.Fatalf("outbox = %+v, want one %s event", store.outbox, events.EventTypeRoomDrawn)
			}
		})
	}
}

func TestGuard_DrawTwice(t *testing.T) {
	room := fullRoom(models.MatchingTypeHighestFirst)
	store := newMemStore(room)
	guard := NewGuard(store, clockwork.NewFakeClock())

	first, err := guard.Draw(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("first Draw() error = %v", err)
	}
	before, _ := store.LoadRoom(context.Background(), room.ID)

	_, err = guard.Draw(context.Background(), room.ID)
	var already *AlreadyDrawnError
	if !errors.As(err, &already) {
		t.Fatalf("second Draw() error = %v, want *AlreadyDrawnError", err)
	}
	if !errors.Is(err, ErrAlreadyDrawn) {
		t.Errorf("errors.Is(err, ErrAlreadyDrawn) = false")
	}
	if diff := cmp.Diff(first.Assignment(), already.Assignment()); diff != "" {
		t.Errorf("second draw returned a different assignment (-first +second):\n%s", diff)
	}

	after, _ := store.LoadRoom(context.Background(), room.ID)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("second draw changed the stored room:\n%s", diff)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
}

func TestGuard_DrawNotReady(t *testing.T) {
	room := fullRoom(models.MatchingTypeHighestFirst)
	room.Participants = room.Participants[:1]
	store := newMemStore(room)

	_, err := NewGuard(store, clockwork.NewFakeClock()).Draw(context.Background(), room.ID)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Draw() error = %v, want %v", err, ErrNotReady)
	}
	if store.saves != 0 || len(store.outbox) != 0 {
		t.Errorf("not-ready draw wrote to the store")
	}
}

func TestGuard_DrawRoomNotFound(t *testing.T) {
	_, err := NewGuard(newMemStore(), nil).Draw(context.Background(), uuid.New())
	if !errors.Is(err, repository.ErrRoomNotFound) {
		t.Fatalf("Draw() error = %v, want %v", err, repository.ErrRoomNotFound)
	}
}

func TestGuard_DrawLosesRace(t *testing.T) {
	room := fullRoom(models.MatchingTypeHighestFirst)
	store := newMemStore(room)

	// another caller publishes first, with the opposite assignment
	winner := room.Clone()
	winner.ApplyAssignment(models.Assignment{1: room.Participants[1].ID, 2: room.Participants[0].ID})
	winner.State = models.RoomStateDrawn
	winner.Version++
	store.beforeSave = func() { store.set(winner) }

	_, err := NewGuard(store, clockwork.NewFakeClock()).Draw(context.Background(), room.ID)
	var already *AlreadyDrawnError
	if !errors.As(err, &already) {
		t.Fatalf("Draw() error = %v, want *AlreadyDrawnError", err)
	}
	if diff := cmp.Diff(winner.Assignment(), already.Assignment()); diff != "" {
		t.Errorf("loser saw a different assignment (-want +got):\n%s", diff)
	}
}

func TestGuard_DrawRetriesAfterUnrelatedConflict(t *testing.T) {
	room := fullRoom(models.MatchingTypeHighestFirst)
	store := newMemStore(room)

	// a concurrent write bumps the version but leaves the room open
	bumped := room.Clone()
	bumped.Version++
	store.beforeSave = func() { store.set(bumped) }

	drawn, err := NewGuard(store, clockwork.NewFakeClock()).Draw(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if drawn.Version != bumped.Version+1 {
		t.Errorf("Version = %d, want %d", drawn.Version, bumped.Version+1)
	}
}

func TestGuard_ConcurrentDraws(t *testing.T) {
	room := fullRoom(models.MatchingTypeDeferredRatio)
	store := newMemStore(room)
	guard := NewGuard(store, clockwork.NewFakeClock())

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		results   []models.Assignment
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drawn, err := guard.Draw(context.Background(), room.ID)

			mu.Lock()
			defer mu.Unlock()
			var already *AlreadyDrawnError
			switch {
			case err == nil:
				successes++
				results = append(results, drawn.Assignment())
			case errors.As(err, &already):
				results = append(results, already.Assignment())
			default:
				t.Errorf("Draw() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want 1", successes)
	}
	if store.saves != 1 {
		t.Errorf("saves = %d, want 1", store.saves)
	}
	for _, got := range results {
		if diff := cmp.Diff(results[0], got); diff != "" {
			t.Errorf("callers observed different assignments:\n%s", diff)
		}
	}
}
