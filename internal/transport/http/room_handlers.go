package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/core"
	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room directory endpoints.
type RoomHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	ID         string `json:"id" binding:"required,min=1,max=64"`
	Name       string `json:"name" binding:"required,min=1,max=64"`
	Visibility string `json:"visibility" binding:"omitempty,oneof=public private"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Visibility  string `json:"visibility"`
	MemberCount int    `json:"member_count"`
	CreatedAt   string `json:"created_at"`
}

// GrantAccessRequest represents the grant access request body.
type GrantAccessRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// MessageResponse represents a persisted message in API responses.
type MessageResponse struct {
	ID     int64  `json:"id"`
	Room   string `json:"room"`
	Seq    int64  `json:"seq"`
	Sender string `json:"sender"`
	Body   string `json:"body"`
	TS     int64  `json:"ts"`
}

// CreateRoom handles room creation with explicit metadata.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	visibility := store.RoomVisibility(req.Visibility)
	if visibility == "" {
		visibility = store.VisibilityPublic
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.ID, req.Name, visibility)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "room with this id already exists"})
			return
		}
		h.log.Error().Err(err).Str("room", req.ID).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room", room.ID).Str("visibility", string(room.Visibility)).Msg("room created")
	c.JSON(http.StatusCreated, h.roomResponse(room))
}

// ListRooms handles listing rooms with live member counts.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, h.roomResponse(room))
	}
	c.JSON(http.StatusOK, response)
}

// GrantAccess allows a user into a private room.
// POST /api/rooms/:room/access
func (h *RoomHandlers) GrantAccess(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID := c.Param("room")
	var req GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if _, err := h.store.GetRoom(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if err := h.store.GrantAccess(c.Request.Context(), roomID, req.UserID); err != nil {
		h.log.Error().Err(err).Str("room", roomID).Str("user", req.UserID).Msg("failed to grant access")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

// History serves message backfill over REST.
// GET /api/rooms/:room/messages?from_seq=&limit=
func (h *RoomHandlers) History(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID := c.Param("room")
	fromSeq, _ := strconv.ParseInt(c.DefaultQuery("from_seq", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	messages, err := h.store.ReadRange(c.Request.Context(), roomID, fromSeq, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to read history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		response = append(response, MessageResponse{
			ID:     m.ID,
			Room:   m.RoomID,
			Seq:    m.Seq,
			Sender: m.SenderID,
			Body:   m.Body,
			TS:     m.CreatedAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, response)
}

func (h *RoomHandlers) roomResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		Visibility:  string(room.Visibility),
		MemberCount: len(h.hub.Members(room.ID)),
		CreatedAt:   room.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
