package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

// StateProvider loads the current room for the snapshot a viewer gets on connect
type StateProvider interface {
	LoadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
}

// WebSocketHandler serves the viewer endpoints
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	state             StateProvider
}

// NewWebSocketHandler creates a handler. state may be nil, then viewers get no snapshot.
func NewWebSocketHandler(cm *ConnectionManager, state StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		state:             state,
	}
}

// HandleRoomConnection upgrades /ws/room?room_id=... to a viewer connection
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomIDStr := r.URL.Query().Get("room_id")
	if roomIDStr == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	roomID, err := uuid.Parse(roomIDStr)
	if err != nil {
		http.Error(w, "invalid room_id format", http.StatusBadRequest)
		return
	}

	var snapshot *RoomEvent
	if h.state != nil {
		room, err := h.state.LoadRoom(r.Context(), roomID)
		if errors.Is(err, repository.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to load room snapshot")
			http.Error(w, "failed to load room", http.StatusInternalServerError)
			return
		}
		if snapshot, err = snapshotEvent(room, time.Now().UTC()); err != nil {
			log.Error().Err(err).Str("room_id", roomID.String()).Msg("failed to build room snapshot")
			http.Error(w, "failed to load room", http.StatusInternalServerError)
			return
		}
	}

	// Upgrade has already replied on failure
	if err := h.connectionManager.UpgradeConnection(w, r, roomID, snapshot); err != nil {
		log.Error().
			Err(err).
			Str("room_id", roomID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats writes connection statistics as JSON
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to write stats")
	}
}

// RegisterRoutes registers the viewer routes on mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/room", h.HandleRoomConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
