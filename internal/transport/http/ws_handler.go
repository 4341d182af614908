package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/auth"
	"github.com/Dhanush032/realtime-chat-server/internal/config"
	"github.com/Dhanush032/realtime-chat-server/internal/core"
	"github.com/Dhanush032/realtime-chat-server/internal/proto"
	"github.com/Dhanush032/realtime-chat-server/internal/store"
)

// WSHandler is the gateway: it upgrades HTTP connections, resolves the
// already-authenticated user, and bridges inbound frames to the registry,
// hub, and message pipeline.
type WSHandler struct {
	registry *core.Registry
	hub      *core.Hub
	pipeline *core.Pipeline
	store    store.Store
	auth     *auth.Service
	cfg      config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket gateway handler.
func NewWSHandler(registry *core.Registry, hub *core.Hub, pipeline *core.Pipeline, st store.Store, authService *auth.Service, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		hub:      hub,
		pipeline: pipeline,
		store:    st,
		auth:     authService,
		cfg:      cfg,
		log:      logger,
	}
}

// ServeHTTP serves GET /ws. It runs on the plain mux, outside the REST
// router: the upgrade hijacks the underlying TCP connection, which must
// not pass through middleware that wraps the response writer. Identity is
// resolved before the connection reaches the registry; the gateway never
// checks credentials itself.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stdhttp.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid token"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := core.NewConn(uuid.NewString(), claims.UserID, claims.Username, h.cfg.SendBufferSize)
	if err := h.registry.Register(client); err != nil {
		h.log.Error().Err(err).Str("conn_id", client.ID).Msg("register connection")
		conn.Close(websocket.StatusInternalError, "registration failed")
		return
	}
	// The single cleanup path: whichever of client close, transport error,
	// or backpressure eviction fires first, deregistration runs once.
	defer h.registry.Deregister(client.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	limiter := newRateLimiter(h.cfg.MessagesPerMinute)
	limiter.startReset(client.Closed())

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	client.Shutdown()
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

var errEvicted = errors.New("connection evicted")

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		h.handleInbound(ctx, client, inbound, limiter)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Conn) error {
	for {
		select {
		case event := <-client.Events():
			if event == nil {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Closed():
			return errEvicted
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) handleInbound(ctx context.Context, client *core.Conn, inbound proto.Inbound, limiter *rateLimiter) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if !h.decode(client, inbound.Data, &join) {
			return
		}
		if join.Room == "" {
			h.sendError(client, core.ErrCodeBadRequest, "room is required")
			return
		}
		h.handleJoin(ctx, client, join.Room)
	case proto.InboundTypeLeave:
		var leave proto.JoinData
		if !h.decode(client, inbound.Data, &leave) {
			return
		}
		if leave.Room == "" {
			h.sendError(client, core.ErrCodeBadRequest, "room is required")
			return
		}
		h.hub.Leave(leave.Room, client)
	case proto.InboundTypeSend:
		var send proto.SendData
		if !h.decode(client, inbound.Data, &send) {
			return
		}
		if send.Room == "" {
			h.sendError(client, core.ErrCodeBadRequest, "room is required")
			return
		}
		if !limiter.allow() {
			h.sendError(client, core.ErrCodeRateLimited, "too many messages, slow down")
			return
		}
		if _, err := h.pipeline.Submit(ctx, send.Room, client, send.Body); err != nil {
			h.sendSubmitError(client, err)
		}
	case proto.InboundTypePing:
		client.TrySend(&core.Event{Kind: core.EventPong})
	default:
		h.sendError(client, core.ErrCodeBadRequest, "unknown frame type")
	}
}

// handleJoin authorizes against the room directory, then hands the
// subscribe-plus-backfill to the pipeline, which runs both under the
// room's delivery lock.
func (h *WSHandler) handleJoin(ctx context.Context, client *core.Conn, roomID string) {
	allowed, err := h.store.Authorize(ctx, roomID, client.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("authorize join")
		h.sendError(client, core.ErrCodePersistence, "room directory unavailable")
		return
	}
	if !allowed {
		h.sendError(client, core.ErrCodeUnauthorized, "not allowed to join this room")
		return
	}

	if _, err := h.store.EnsureRoom(ctx, roomID); err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("ensure room")
		h.sendError(client, core.ErrCodePersistence, "room directory unavailable")
		return
	}

	// Joined but backfill failed still counts as joined; the member only
	// misses the snapshot.
	if _, err := h.pipeline.JoinWithHistory(ctx, roomID, client, h.cfg.HistoryLimit); err != nil {
		h.log.Warn().Err(err).Str("room", roomID).Msg("join backfill")
	}
}

func (h *WSHandler) decode(client *core.Conn, data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		h.sendError(client, core.ErrCodeBadRequest, "malformed frame data")
		return false
	}
	return true
}

func (h *WSHandler) sendError(client *core.Conn, code, msg string) {
	client.TrySend(&core.Event{Kind: core.EventError, Error: &core.CoreError{Code: code, Message: msg}})
}

// sendSubmitError reports a pipeline failure to the submitting connection
// only; no one else is notified.
func (h *WSHandler) sendSubmitError(client *core.Conn, err error) {
	var coreErr *core.CoreError
	if errors.As(err, &coreErr) {
		client.TrySend(&core.Event{Kind: core.EventError, Error: coreErr})
		return
	}
	h.sendError(client, core.ErrCodeBadRequest, err.Error())
}
