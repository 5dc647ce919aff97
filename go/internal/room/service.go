package room

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/todoroom/go/internal/models"
	"github.com/mcdev12/todoroom/go/internal/room/draw"
	"github.com/mcdev12/todoroom/go/internal/room/ledger"
	"github.com/mcdev12/todoroom/go/internal/room/repository"
	"github.com/mcdev12/todoroom/go/internal/rpcjson"
)

// ServiceName is the fully-qualified name of the room service.
const ServiceName = "todoroom.v1.RoomService"

const (
	CreateRoomProcedure            = "/" + ServiceName + "/CreateRoom"
	GetRoomProcedure               = "/" + ServiceName + "/GetRoom"
	ListPublicRoomsProcedure       = "/" + ServiceName + "/ListPublicRooms"
	ListCreatedRoomsProcedure      = "/" + ServiceName + "/ListCreatedRooms"
	ListParticipatedRoomsProcedure = "/" + ServiceName + "/ListParticipatedRooms"
	JoinRoomProcedure              = "/" + ServiceName + "/JoinRoom"
	ValidateBidProcedure           = "/" + ServiceName + "/ValidateBid"
	CanDrawProcedure               = "/" + ServiceName + "/CanDraw"
	DrawProcedure                  = "/" + ServiceName + "/Draw"
)

// RoomApp defines what the service layer needs from the room application
type RoomApp interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListPublicRooms(ctx context.Context, limit int) ([]*models.Room, error)
	ListCreatedRooms(ctx context.Context) ([]*models.Room, error)
	ListParticipatedRooms(ctx context.Context) ([]*models.Room, error)
	JoinRoom(ctx context.Context, req JoinRoomRequest) (*models.Room, *models.Participant, error)
	ValidateBid(ctx context.Context, roomID uuid.UUID, bids []models.RoleBid) error
	CanDraw(ctx context.Context, roomID uuid.UUID) (bool, error)
	Draw(ctx context.Context, req DrawRequest) (*models.Room, error)
}

// Wire messages

type RoomResponse struct {
	Room *models.RoomView `json:"room"`
}

type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

type ListPublicRoomsRequest struct {
	Limit int `json:"limit"`
}

type ListRoomsRequest struct{}

type ListRoomsResponse struct {
	Rooms []*models.RoomView `json:"rooms"`
}

type JoinRoomResponse struct {
	Room        *models.RoomView        `json:"room"`
	Participant *models.ParticipantView `json:"participant"`
}

type ValidateBidRequest struct {
	RoomID string           `json:"room_id"`
	Bids   []models.RoleBid `json:"bids"`
}

type ValidateBidResponse struct {
	Valid bool `json:"valid"`
}

type CanDrawRequest struct {
	RoomID string `json:"room_id"`
}

type CanDrawResponse struct {
	CanDraw bool `json:"can_draw"`
}

// Service implements the RoomService connect handlers
type Service struct {
	app RoomApp
}

// NewService creates a new room service
func NewService(app RoomApp) *Service {
	return &Service{app: app}
}

// NewHandler mounts every procedure of the service. Messages travel as JSON.
func NewHandler(s *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(rpcjson.Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateRoomProcedure, connect.NewUnaryHandler(CreateRoomProcedure, s.CreateRoom, opts...))
	mux.Handle(GetRoomProcedure, connect.NewUnaryHandler(GetRoomProcedure, s.GetRoom, opts...))
	mux.Handle(ListPublicRoomsProcedure, connect.NewUnaryHandler(ListPublicRoomsProcedure, s.ListPublicRooms, opts...))
	mux.Handle(ListCreatedRoomsProcedure, connect.NewUnaryHandler(ListCreatedRoomsProcedure, s.ListCreatedRooms, opts...))
	mux.Handle(ListParticipatedRoomsProcedure, connect.NewUnaryHandler(ListParticipatedRoomsProcedure, s.ListParticipatedRooms, opts...))
	mux.Handle(JoinRoomProcedure, connect.NewUnaryHandler(JoinRoomProcedure, s.JoinRoom, opts...))
	mux.Handle(ValidateBidProcedure, connect.NewUnaryHandler(ValidateBidProcedure, s.ValidateBid, opts...))
	mux.Handle(CanDrawProcedure, connect.NewUnaryHandler(CanDrawProcedure, s.CanDraw, opts...))
	mux.Handle(DrawProcedure, connect.NewUnaryHandler(DrawProcedure, s.Draw, opts...))
	return "/" + ServiceName + "/", mux
}

// CreateRoom creates a room
func (s *Service) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error) {
	room, err := s.app.CreateRoom(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RoomResponse{Room: room.View()}), nil
}

// GetRoom retrieves a room by ID
func (s *Service) GetRoom(ctx context.Context, req *connect.Request[GetRoomRequest]) (*connect.Response[RoomResponse], error) {
	roomID, err := uuid.Parse(req.Msg.RoomID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	room, err := s.app.GetRoom(ctx, roomID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RoomResponse{Room: room.View()}), nil
}

// ListPublicRooms lists visible rooms
func (s *Service) ListPublicRooms(ctx context.Context, req *connect.Request[ListPublicRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	rooms, err := s.app.ListPublicRooms(ctx, req.Msg.Limit)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListRoomsResponse{Rooms: views(rooms)}), nil
}

// ListCreatedRooms lists rooms created by the caller
func (s *Service) ListCreatedRooms(ctx context.Context, _ *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	rooms, err := s.app.ListCreatedRooms(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListRoomsResponse{Rooms: views(rooms)}), nil
}

// ListParticipatedRooms lists rooms the caller joined
func (s *Service) ListParticipatedRooms(ctx context.Context, _ *connect.Request[ListRoomsRequest]) (*connect.Response[ListRoomsResponse], error) {
	rooms, err := s.app.ListParticipatedRooms(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListRoomsResponse{Rooms: views(rooms)}), nil
}

// JoinRoom joins a room with a bid vector
func (s *Service) JoinRoom(ctx context.Context, req *connect.Request[JoinRoomRequest]) (*connect.Response[JoinRoomResponse], error) {
	room, participant, err := s.app.JoinRoom(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	view := participant.View()
	return connect.NewResponse(&JoinRoomResponse{Room: room.View(), Participant: &view}), nil
}

// ValidateBid checks a bid vector without joining
func (s *Service) ValidateBid(ctx context.Context, req *connect.Request[ValidateBidRequest]) (*connect.Response[ValidateBidResponse], error) {
	roomID, err := uuid.Parse(req.Msg.RoomID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := s.app.ValidateBid(ctx, roomID, req.Msg.Bids); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ValidateBidResponse{Valid: true}), nil
}

// CanDraw reports whether a room is ready to draw
func (s *Service) CanDraw(ctx context.Context, req *connect.Request[CanDrawRequest]) (*connect.Response[CanDrawResponse], error) {
	roomID, err := uuid.Parse(req.Msg.RoomID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	ok, err := s.app.CanDraw(ctx, roomID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CanDrawResponse{CanDraw: ok}), nil
}

// Draw draws a room
func (s *Service) Draw(ctx context.Context, req *connect.Request[DrawRequest]) (*connect.Response[RoomResponse], error) {
	room, err := s.app.Draw(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RoomResponse{Room: room.View()}), nil
}

func views(rooms []*models.Room) []*models.RoomView {
	out := make([]*models.RoomView, len(rooms))
	for i, room := range rooms {
		out[i] = room.View()
	}
	return out
}

// toConnectError maps domain errors onto connect codes.
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ledger.ErrUnknownRole),
		errors.Is(err, ledger.ErrCapacityExceeded),
		errors.Is(err, ledger.ErrInvalidPoints),
		errors.Is(err, ledger.ErrDuplicateRole),
		errors.Is(err, ledger.ErrCommentTooLong):
		code = connect.CodeInvalidArgument
	case errors.Is(err, ledger.ErrDuplicateParticipant), errors.Is(err, draw.ErrAlreadyDrawn):
		code = connect.CodeAlreadyExists
	case errors.Is(err, draw.ErrNotReady), errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomClosed), errors.Is(err, ledger.ErrFrozen):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, repository.ErrRoomNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, ErrUnauthenticated):
		code = connect.CodeUnauthenticated
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrForbidden):
		code = connect.CodePermissionDenied
	case errors.Is(err, repository.ErrVersionConflict):
		code = connect.CodeAborted
	default:
		log.Error().Err(err).Msg("internal error")
		return connect.NewError(connect.CodeInternal, fmt.Errorf("internal error"))
	}
	return connect.NewError(code, err)
}
