package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/auth"
	"github.com/Dhanush032/realtime-chat-server/internal/core"
)

// APIHandlers provides the token and presence endpoints.
type APIHandlers struct {
	auth     *auth.Service
	presence *core.Tracker
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, presence *core.Tracker, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		auth:     authService,
		presence: presence,
		log:      logger,
	}
}

// TokenRequest represents the guest token request body.
type TokenRequest struct {
	Username string `json:"username" binding:"required"`
}

// TokenResponse represents the minted token.
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// PresenceResponse represents a user's presence status.
type PresenceResponse struct {
	UserID   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

// MintToken issues a guest JWT. Real credential checks live in an upstream
// identity provider; this endpoint exists so the server works standalone.
// POST /api/token
func (h *APIHandlers) MintToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, userID, err := h.auth.MintGuestToken(req.Username)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidUsername) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
			return
		}
		h.log.Error().Err(err).Msg("mint guest token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, TokenResponse{Token: token, UserID: userID})
}

// PresenceStatus reports online/offline and last-seen for a user.
// GET /api/presence/:user
func (h *APIHandlers) PresenceStatus(c *gin.Context) {
	if _, ok := userFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	userID := c.Param("user")
	online, lastSeen := h.presence.Status(userID)

	resp := PresenceResponse{UserID: userID, Online: online}
	if !lastSeen.IsZero() {
		resp.LastSeen = lastSeen.Unix()
	}
	c.JSON(http.StatusOK, resp)
}
