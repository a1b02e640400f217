package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/causalchat/server/internal/core"
)

// RoomHandlers provides HTTP handlers for room management endpoints. Rooms
// are transient hub state, never persisted, so these handlers
// address the hub's own room registry rather than a store.
type RoomHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{hub: hub, log: logger}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	RoomID string `json:"room_id" binding:"required,min=1,max=64"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string `json:"id"`
	MemberCount int    `json:"member_count"`
}

// CreateRoom handles lazy room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.hub.CreateRoom(c.Request.Context(), req.RoomID); err != nil {
		if errors.Is(err, c.Request.Context().Err()) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
			return
		}
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}

	h.log.Info().Str("room_id", req.RoomID).Msg("room created successfully")
	c.JSON(http.StatusCreated, RoomResponse{ID: req.RoomID})
}

// ListRooms handles listing every room currently known to the hub.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.hub.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, RoomResponse{ID: room.ID, MemberCount: room.MemberCount})
	}

	h.log.Debug().Int("room_count", len(rooms)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}
