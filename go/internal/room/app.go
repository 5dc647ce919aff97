package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/auth"
	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/events"
	"github.com/mcdev12/todoroom/go/internal/room/ledger"
	"github.com/mcdev12/todoroom/go/internal/room/matching"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
)

const (
	maxJoinAttempts = 3
	maxNameLength   = 50
	maxListLimit    = 100
)

// Store defines what the room app layer needs from persistence
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room, outbox []events.OutboxEvent) error
	LoadRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	AddParticipant(ctx context.Context, roomID uuid.UUID, participant models.Participant, bids []models.Bid, expectedVersion int64, outbox []events.OutboxEvent) error
	ListRooms(ctx context.Context, filter repository.RoomFilter) ([]*models.Room, error)
}

// Drawer runs the draw of a room
type Drawer interface {
	Draw(ctx context.Context, roomID uuid.UUID) (*models.Room, error)
}

// App handles room business logic
type App struct {
	store    Store
	drawer   Drawer
	clock    clockwork.Clock
	defaults Defaults
}

// NewApp creates a new room App
func NewApp(store Store, drawer Drawer, clock clockwork.Clock, defaults Defaults) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{
		store:    store,
		drawer:   drawer,
		clock:    clock,
		defaults: defaults,
	}
}

// CreateRoom creates a new room with validation
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if req.PointCap == 0 {
		req.PointCap = a.defaults.PointCap
	}
	if req.MatchingType == "" {
		req.MatchingType = a.defaults.MatchingType
	}

	ownerID, signedIn := auth.CurrentUserID(ctx)
	if err := a.validateCreateRoomRequest(req, signedIn); err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	room := &models.Room{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		HeadCount:    req.HeadCount,
		PointCap:     req.PointCap,
		MatchingType: req.MatchingType,
		State:        models.RoomStateOpen,
		Visibility:   req.Visibility,
		Roles:        make([]models.Role, len(req.Roles)),
		Participants: []models.Participant{},
		Bids:         []models.Bid{},
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if signedIn {
		room.OwnerID = &ownerID
	}
	for i, role := range req.Roles {
		room.Roles[i] = models.Role{
			ID:          int64(i + 1),
			Name:        strings.TrimSpace(role.Name),
			Description: role.Description,
		}
	}

	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		room.PasswordHash = hash
	}

	event, err := events.New(room.ID, events.EventTypeRoomCreated, events.NewRoomCreatedPayload(room), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	if err := a.store.CreateRoom(ctx, room, []events.OutboxEvent{event}); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	log.Info().
		Str("room_id", room.ID.String()).
		Int("head_count", room.HeadCount).
		Str("matching_type", string(room.MatchingType)).
		Bool("visibility", room.Visibility).
		Msg("room created")
	return room, nil
}

// GetRoom retrieves a room by ID
func (a *App) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := a.store.LoadRoom(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// ListPublicRooms lists visible rooms, newest first
func (a *App) ListPublicRooms(ctx context.Context, limit int) ([]*models.Room, error) {
	rooms, err := a.store.ListRooms(ctx, repository.RoomFilter{PublicOnly: true, Limit: clampLimit(limit)})
	if err != nil {
		return nil, fmt.Errorf("failed to list public rooms: %w", err)
	}
	return rooms, nil
}

// ListCreatedRooms lists the rooms the signed-in user created
func (a *App) ListCreatedRooms(ctx context.Context) ([]*models.Room, error) {
	userID, ok := auth.CurrentUserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	rooms, err := a.store.ListRooms(ctx, repository.RoomFilter{OwnerID: &userID, Limit: maxListLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list created rooms: %w", err)
	}
	return rooms, nil
}

// ListParticipatedRooms lists the rooms the signed-in user joined
func (a *App) ListParticipatedRooms(ctx context.Context) ([]*models.Room, error) {
	userID, ok := auth.CurrentUserID(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	rooms, err := a.store.ListRooms(ctx, repository.RoomFilter{ParticipantUserID: &userID, Limit: maxListLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list participated rooms: %w", err)
	}
	return rooms, nil
}

// JoinRoom adds a participant and their bids to an open room. A join that
// loses a race against another join is retried on a fresh snapshot.
func (a *App) JoinRoom(ctx context.Context, req JoinRoomRequest) (*models.Room, *models.Participant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, nil, fmt.Errorf("%w: name is longer than %d characters", ErrInvalidArgument, maxNameLength)
	}

	userID, signedIn := auth.CurrentUserID(ctx)

	for attempt := 1; ; attempt++ {
		room, err := a.store.LoadRoom(ctx, req.RoomID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to join room: %w", err)
		}

		if err := a.checkJoinable(room, name, req.Password, userID, signedIn); err != nil {
			return nil, nil, err
		}

		now := a.clock.Now().UTC()
		participant := models.Participant{
			ID:        uuid.New(),
			RoomID:    room.ID,
			Name:      name,
			JoinOrder: nextJoinOrder(room),
			JoinedAt:  now,
		}
		if signedIn {
			participant.UserID = &userID
		}

		l, err := ledger.FromRoom(room)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to join room: %w", err)
		}
		if err := l.Record(participant.ID, req.Bids); err != nil {
			return nil, nil, err
		}

		bids := make([]models.Bid, len(req.Bids))
		for i, bid := range req.Bids {
			bids[i] = models.Bid{
				ParticipantID: participant.ID,
				RoleID:        bid.RoleID,
				Points:        bid.Points,
				Comment:       bid.Comment,
			}
		}

		expectedVersion := room.Version
		room.Participants = append(room.Participants, participant)
		room.Bids = append(room.Bids, bids...)
		room.UpdatedAt = now

		event, err := events.New(room.ID, events.EventTypeParticipantJoined, events.NewParticipantJoinedPayload(room, participant), now)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to join room: %w", err)
		}

		err = a.store.AddParticipant(ctx, room.ID, participant, bids, expectedVersion, []events.OutboxEvent{event})
		if err == nil {
			room.Version = expectedVersion + 1
			log.Info().
				Str("room_id", room.ID.String()).
				Str("participant_id", participant.ID.String()).
				Int("join_order", participant.JoinOrder).
				Int("participants", room.ParticipantCount()).
				Int("head_count", room.HeadCount).
				Msg("participant joined")
			return room, &participant, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, nil, fmt.Errorf("failed to join room: %w", err)
		}
		if attempt >= maxJoinAttempts {
			return nil, nil, fmt.Errorf("join gave up after %d attempts: %w", attempt, err)
		}

		log.Debug().
			Str("room_id", room.ID.String()).
			Int("attempt", attempt).
			Msg("version conflict on join, reloading")
	}
}

// ValidateBid checks a bid vector against a room without joining it
func (a *App) ValidateBid(ctx context.Context, roomID uuid.UUID, bids []models.RoleBid) error {
	room, err := a.store.LoadRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("failed to validate bid: %w", err)
	}
	l, err := ledger.FromRoom(room)
	if err != nil {
		return fmt.Errorf("failed to validate bid: %w", err)
	}
	return l.Validate(bids)
}

// CanDraw reports whether the room is ready to draw
func (a *App) CanDraw(ctx context.Context, roomID uuid.UUID) (bool, error) {
	room, err := a.store.LoadRoom(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("failed to check room: %w", err)
	}
	return draw.CanDraw(room), nil
}

// Draw authorizes the caller and draws the room. The owner may always draw;
// anybody else needs the room password.
func (a *App) Draw(ctx context.Context, req DrawRequest) (*models.Room, error) {
	room, err := a.store.LoadRoom(ctx, req.RoomID)
	if err != nil {
		return nil, fmt.Errorf("failed to draw room: %w", err)
	}

	if err := authorizeDraw(ctx, room, req.Password); err != nil {
		log.Warn().
			Err(err).
			Str("room_id", room.ID.String()).
			Msg("draw refused")
		return nil, err
	}

	return a.drawer.Draw(ctx, room.ID)
}

func authorizeDraw(ctx context.Context, room *models.Room, password string) error {
	if userID, ok := auth.CurrentUserID(ctx); ok && room.OwnerID != nil && *room.OwnerID == userID {
		return nil
	}
	if password == "" {
		return fmt.Errorf("%w: only the owner or a caller with the room password may draw", ErrForbidden)
	}
	if !auth.CheckPassword(room.PasswordHash, password) {
		return ErrInvalidPassword
	}
	return nil
}

func (a *App) checkJoinable(room *models.Room, name, password string, userID uuid.UUID, signedIn bool) error {
	if room.State != models.RoomStateOpen {
		return ErrRoomClosed
	}
	if room.IsFull() {
		return ErrRoomFull
	}

	isOwner := signedIn && room.OwnerID != nil && *room.OwnerID == userID
	if !room.Visibility && !isOwner && !auth.CheckPassword(room.PasswordHash, password) {
		return ErrInvalidPassword
	}

	for _, p := range room.Participants {
		if strings.EqualFold(p.Name, name) {
			return fmt.Errorf("%w: name %q is taken", ErrDuplicateParticipant, name)
		}
		if signedIn && p.UserID != nil && *p.UserID == userID {
			return fmt.Errorf("%w: user already joined", ErrDuplicateParticipant)
		}
	}
	return nil
}

// Validation methods

// validateCreateRoomRequest validates create room request
func (a *App) validateCreateRoomRequest(req CreateRoomRequest, signedIn bool) error {
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if req.HeadCount < 2 {
		return fmt.Errorf("%w: head_count must be at least 2", ErrInvalidArgument)
	}
	if req.PointCap <= 1 {
		return fmt.Errorf("%w: point_cap must be greater than 1", ErrInvalidArgument)
	}
	if len(req.Roles) != req.HeadCount {
		return fmt.Errorf("%w: %d roles for head_count %d", ErrInvalidArgument, len(req.Roles), req.HeadCount)
	}
	for i, role := range req.Roles {
		if strings.TrimSpace(role.Name) == "" {
			return fmt.Errorf("%w: role %d needs a name", ErrInvalidArgument, i+1)
		}
	}
	if _, err := matching.StrategyFor(req.MatchingType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	// anonymous creators draw with the password, private rooms join with it
	if req.Password == "" && !signedIn {
		return fmt.Errorf("%w: password is required without signing in", ErrInvalidArgument)
	}
	if req.Password == "" && !req.Visibility {
		return fmt.Errorf("%w: private rooms need a password", ErrInvalidArgument)
	}
	if len(req.Password) > auth.MaxPasswordLength {
		return fmt.Errorf("%w: password is longer than %d bytes", ErrInvalidArgument, auth.MaxPasswordLength)
	}
	return nil
}

func nextJoinOrder(room *models.Room) int {
	next := 1
	for _, p := range room.Participants {
		if p.JoinOrder >= next {
			next = p.JoinOrder + 1
		}
	}
	return next
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
