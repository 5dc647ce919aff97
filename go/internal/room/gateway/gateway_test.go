package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

type stubState map[uuid.UUID]*models.Room

func (s stubState) LoadRoom(_ context.Context, id uuid.UUID) (*models.Room, error) {
	room, ok := s[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}

func startGateway(t *testing.T, state StateProvider) (*httptest.Server, *ConnectionManager) {
	t.Helper()
	cm := NewConnectionManager(DefaultConnectionConfig())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, state).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, cm
}

func dial(t *testing.T, srv *httptest.Server, roomID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room?room_id=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) RoomEvent {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event RoomEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return event
}

func TestGateway_SnapshotThenEvents(t *testing.T) {
	room := &models.Room{ID: uuid.New(), Name: "kitchen", HeadCount: 2, State: models.RoomStateOpen}
	other := &models.Room{ID: uuid.New(), Name: "garden", HeadCount: 2, State: models.RoomStateOpen}
	srv, cm := startGateway(t, stubState{room.ID: room, other.ID: other})

	viewer := dial(t, srv, room.ID.String())
	bystander := dial(t, srv, other.ID.String())

	snap := readEvent(t, viewer)
	if snap.Type != EventTypeRoomSnapshot || snap.RoomID != room.ID.String() {
		t.Fatalf("first frame = %+v, want a snapshot of %s", snap, room.ID)
	}
	var snapRoom models.RoomView
	if err := json.Unmarshal(snap.Data, &snapRoom); err != nil || snapRoom.Name != "kitchen" {
		t.Errorf("snapshot room = %+v, err = %v", snapRoom, err)
	}
	readEvent(t, bystander)

	outboxEvent, err := events.New(room.ID, events.EventTypeParticipantJoined, map[string]string{"participant_name": "Ana"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("events.New() error = %v", err)
	}
	data, _ := json.Marshal(events.NewEnvelope(outboxEvent))

	consumer := &EventConsumer{cm: cm}
	if err := consumer.HandleMessage(data); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	got := readEvent(t, viewer)
	want := RoomEvent{
		ID:        outboxEvent.ID.String(),
		RoomID:    room.ID.String(),
		Type:      EventTypeParticipantJoined,
		Timestamp: outboxEvent.CreatedAt,
		Data:      outboxEvent.Payload,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	// the other room's viewer sees nothing
	_ = bystander.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := bystander.ReadMessage(); err == nil {
		t.Error("viewer of another room received the event")
	}
}

func TestGateway_SnapshotSealsBids(t *testing.T) {
	userID := uuid.New()
	participant := models.Participant{ID: uuid.New(), Name: "Ana", UserID: &userID, JoinOrder: 1}
	comment := "really want dishes"
	room := &models.Room{
		ID:           uuid.New(),
		Name:         "kitchen",
		HeadCount:    2,
		State:        models.RoomStateOpen,
		Roles:        []models.Role{{ID: 1, Name: "dishes"}, {ID: 2, Name: "trash"}},
		Participants: []models.Participant{participant},
		Bids: []models.Bid{
			{ParticipantID: participant.ID, RoleID: 1, Points: 80, Comment: &comment},
			{ParticipantID: participant.ID, RoleID: 2, Points: 20},
		},
	}
	srv, _ := startGateway(t, stubState{room.ID: room})

	snap := readEvent(t, dial(t, srv, room.ID.String()))
	var raw map[string]any
	if err := json.Unmarshal(snap.Data, &raw); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if _, ok := raw["bids"]; ok {
		t.Errorf("snapshot of an open room carries bids: %s", snap.Data)
	}
	if strings.Contains(string(snap.Data), "user_id") || strings.Contains(string(snap.Data), comment) {
		t.Errorf("snapshot leaks participant details: %s", snap.Data)
	}
	participants, _ := raw["participants"].([]any)
	if len(participants) != 1 {
		t.Errorf("snapshot participants = %v, want Ana", raw["participants"])
	}
}

func TestGateway_Rejects(t *testing.T) {
	srv, _ := startGateway(t, stubState{})

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{name: "missing room id", query: "", wantCode: http.StatusBadRequest},
		{name: "bad room id", query: "?room_id=nope", wantCode: http.StatusBadRequest},
		{name: "unknown room", query: "?room_id=" + uuid.NewString(), wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/room" + tt.query
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)
			if err == nil {
				t.Fatal("Dial() succeeded, want an error")
			}
			if resp == nil || resp.StatusCode != tt.wantCode {
				t.Errorf("response = %v, want status %d", resp, tt.wantCode)
			}
		})
	}
}

func TestGateway_Stats(t *testing.T) {
	room := &models.Room{ID: uuid.New()}
	srv, _ := startGateway(t, stubState{room.ID: room})

	readEvent(t, dial(t, srv, room.ID.String()))
	readEvent(t, dial(t, srv, room.ID.String()))

	resp, err := http.Get(srv.URL + "/ws/stats")
	if err != nil {
		t.Fatalf("GET /ws/stats error = %v", err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	want := Stats{TotalConnections: 2, ActiveRooms: 1, RoomConnections: map[string]int{room.ID.String(): 2}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestFromEnvelope(t *testing.T) {
	roomID := uuid.New()
	tests := []struct {
		name    string
		env     events.Envelope
		want    EventType
		wantErr bool
	}{
		{name: "created", env: events.Envelope{RoomID: roomID.String(), EventType: events.EventTypeRoomCreated}, want: EventTypeRoomCreated},
		{name: "drawn", env: events.Envelope{RoomID: roomID.String(), EventType: events.EventTypeRoomDrawn}, want: EventTypeRoomDrawn},
		{name: "unknown type", env: events.Envelope{RoomID: roomID.String(), EventType: "PickMade"}, wantErr: true},
		{name: "bad room id", env: events.Envelope{RoomID: "x", EventType: events.EventTypeRoomDrawn}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRoom, event, err := FromEnvelope(tt.env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromEnvelope() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if gotRoom != roomID || event.Type != tt.want {
				t.Errorf("FromEnvelope() = %s, %s; want %s, %s", gotRoom, event.Type, roomID, tt.want)
			}
		})
	}
}
