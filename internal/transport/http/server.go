package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/auth"
	"github.com/Dhanush032/realtime-chat-server/internal/config"
	"github.com/Dhanush032/realtime-chat-server/internal/core"
	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

// Deps bundles everything the HTTP layer serves.
type Deps struct {
	Registry *core.Registry
	Hub      *core.Hub
	Presence *core.Tracker
	Pipeline *core.Pipeline
	Store    store.Store
	Auth     *auth.Service
}

// NewServer builds the HTTP server: the REST surface runs through gin,
// the websocket gateway hangs off a plain mux because the upgrade hijacks
// the connection and must bypass gin's response writer.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Presence, logger)
	roomHandlers := NewRoomHandlers(deps.Store, deps.Hub, logger)
	wsHandler := NewWSHandler(deps.Registry, deps.Hub, deps.Pipeline, deps.Store, deps.Auth, cfg, logger)

	router.POST("/api/token", apiHandlers.MintToken)

	authed := router.Group("/api", AuthMiddleware(deps.Auth, logger))
	authed.GET("/rooms", roomHandlers.ListRooms)
	authed.POST("/rooms", roomHandlers.CreateRoom)
	authed.POST("/rooms/:room/access", roomHandlers.GrantAccess)
	authed.GET("/rooms/:room/messages", roomHandlers.History)
	authed.GET("/presence/:user", apiHandlers.PresenceStatus)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", wsHandler)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
