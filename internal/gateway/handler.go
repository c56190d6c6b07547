package gateway

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/conference-signaling/internal/dto"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/shared"
)

// Handler exposes the room directory over HTTP for the platform's other
// services. Realtime signaling itself goes over the websocket route.
type Handler struct {
	directory *room.Directory
	registry  *room.Registry
	wsServer  *WSServer
	logger    *slog.Logger
}

func NewHandler(directory *room.Directory, registry *room.Registry, wsServer *WSServer, logger *slog.Logger) *Handler {
	return &Handler{
		directory: directory,
		registry:  registry,
		wsServer:  wsServer,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/rooms", h.CreateRoom)
	g.GET("/rooms", h.ListRooms)
	g.GET("/rooms/:id", h.GetRoom)
	g.DELETE("/rooms/:id", h.DeleteRoom)
	g.POST("/rooms/:id/join", h.Join)
	g.POST("/rooms/:id/leave", h.Leave)
	g.PATCH("/rooms/:id/participants/:userId/media", h.UpdateMedia)
	g.GET("/rooms/:id/ws", h.Signal)
}

func (h *Handler) Signal(c echo.Context) error {
	c.QueryParams().Set("room_id", c.Param("id"))
	return h.wsServer.HandleWS(c)
}

func (h *Handler) CreateRoom(c echo.Context) error {
	var req dto.CreateRoomRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Name == "" {
		return shared.BadRequest("missing_name", "room name is required")
	}
	if req.CreatorID == "" {
		return shared.BadRequest("missing_creator", "creator_id is required")
	}

	spec := room.Spec{
		Name:            req.Name,
		Description:     req.Description,
		MaxParticipants: req.MaxParticipants,
	}
	r, err := h.directory.CreateRoom(c.Request().Context(), spec, req.CreatorID)
	if err != nil {
		h.logger.Error("failed to create room", "error", err)
		return shared.InternalError("create_failed", "failed to create room")
	}

	return c.JSON(http.StatusCreated, h.roomToResponse(r))
}

func (h *Handler) GetRoom(c echo.Context) error {
	r, err := h.directory.GetRoom(c.Request().Context(), c.Param("id"))
	if err != nil {
		return shared.NotFound("room_not_found", "no such room")
	}
	return c.JSON(http.StatusOK, h.roomToResponse(r))
}

func (h *Handler) ListRooms(c echo.Context) error {
	rooms := h.directory.ListRooms()

	resp := dto.RoomListResponse{
		Total: len(rooms),
		Rooms: make([]dto.RoomResponse, 0, len(rooms)),
	}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, h.roomToResponse(r))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteRoom(c echo.Context) error {
	id := c.Param("id")
	if err := h.directory.DeleteRoom(c.Request().Context(), id); err != nil {
		return shared.NotFound("room_not_found", "no such room")
	}
	h.wsServer.TeardownRoom(id)
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Join(c echo.Context) error {
	var req dto.JoinRoomRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.UserID == "" {
		return shared.BadRequest("missing_user", "user_id is required")
	}

	p, err := h.directory.Join(c.Request().Context(), c.Param("id"), room.JoinRequest{
		UserID:       req.UserID,
		ConnectionID: req.ConnectionID,
		Audio:        req.Audio,
		Video:        req.Video,
	})
	switch err {
	case nil:
	case shared.ErrNotFound:
		return shared.NotFound("room_not_found", "no such room")
	case shared.ErrCapacityExceeded:
		return shared.Conflict("room_full", "room is at capacity")
	case shared.ErrAlreadyJoined:
		return shared.Conflict("already_joined", "user is already in the room")
	default:
		h.logger.Error("failed to join room", "error", err, "room_id", c.Param("id"))
		return shared.InternalError("join_failed", "failed to join room")
	}

	return c.JSON(http.StatusOK, participantToResponse(p))
}

func (h *Handler) Leave(c echo.Context) error {
	var req dto.LeaveRoomRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.UserID == "" {
		return shared.BadRequest("missing_user", "user_id is required")
	}

	if err := h.directory.Leave(c.Request().Context(), c.Param("id"), req.UserID); err != nil {
		return shared.NotFound("room_not_found", "no such room")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateMedia(c echo.Context) error {
	var req dto.MediaUpdateRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	p, err := h.directory.UpdateMedia(c.Request().Context(), c.Param("id"), c.Param("userId"), room.MediaUpdate{
		Audio:  req.Audio,
		Video:  req.Video,
		Screen: req.Screen,
	})
	if err != nil {
		return shared.NotFound("participant_not_found", "no such room or participant")
	}
	return c.JSON(http.StatusOK, participantToResponse(p))
}

func (h *Handler) roomToResponse(r *room.Room) dto.RoomResponse {
	participants := h.registry.List(r)

	resp := dto.RoomResponse{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		CreatedBy:       r.CreatedBy,
		MaxParticipants: r.MaxParticipants,
		CreatedAt:       r.CreatedAt,
		IsActive:        r.IsActive,
		Participants:    make([]dto.ParticipantResponse, 0, len(participants)),
	}
	for _, p := range participants {
		resp.Participants = append(resp.Participants, participantToResponse(p))
	}
	return resp
}

func participantToResponse(p *room.Participant) dto.ParticipantResponse {
	return dto.ParticipantResponse{
		UserID:       p.UserID,
		ConnectionID: p.ConnectionID,
		Audio:        p.Audio,
		Video:        p.Video,
		Screen:       p.Screen,
		JoinedAt:     p.JoinedAt,
	}
}
