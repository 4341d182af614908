package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/Dhanush032/realtime-chat-server/internal/auth"
	"github.com/Dhanush032/realtime-chat-server/internal/config"
	"github.com/Dhanush032/realtime-chat-server/internal/core"
	"github.com/Dhanush032/realtime-chat-server/internal/proto"
	"github.com/Dhanush032/realtime-chat-server/internal/store/sqlite"
)

type testEnv struct {
	ts       *httptest.Server
	store    *sqlite.SQLiteStore
	auth     *auth.Service
	hub      *core.Hub
	presence *core.Tracker
	registry *core.Registry
	cfg      config.Config
}

func startTestServer(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	logger := zerolog.Nop()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	authService := auth.NewService(&auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "realtime-chat",
		Audience: "realtime-chat-clients",
		TTL:      time.Hour,
	})

	cfg := config.Default()
	cfg.SendBufferSize = 64
	cfg.HistoryLimit = 50
	for _, opt := range opts {
		opt(&cfg)
	}

	hub := core.NewHub(&logger)
	presence := core.NewTracker(hub, &logger)
	registry := core.NewRegistry(hub, presence, &logger)
	pipeline := core.NewPipeline(hub, st, &logger)

	server := NewServer(Deps{
		Registry: registry,
		Hub:      hub,
		Presence: presence,
		Pipeline: pipeline,
		Store:    st,
		Auth:     authService,
	}, cfg, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		store:    st,
		auth:     authService,
		hub:      hub,
		presence: presence,
		registry: registry,
		cfg:      cfg,
	}
}

func (e *testEnv) token(t *testing.T, username string) string {
	t.Helper()

	token, _, err := e.auth.MintGuestToken(username)
	if err != nil {
		t.Fatalf("mint token for %s: %v", username, err)
	}
	return token
}

func (e *testEnv) wsURL(token string) string {
	return strings.Replace(e.ts.URL, "http://", "ws://", 1) + "/ws?token=" + token
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, username string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(e.token(t, username)), nil)
	if err != nil {
		t.Fatalf("dial ws as %s: %v", username, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func sendFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal frame data: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: frameType, Data: raw}); err != nil {
		t.Fatalf("write %s frame: %v", frameType, err)
	}
}

// mustFrame reads outbound frames until it sees one of the wanted type,
// returning it with its data re-marshaled for the caller to decode.
func mustFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, frameType string) (proto.Outbound, json.RawMessage) {
	t.Helper()

	deadline, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	for {
		var out struct {
			Type  string          `json:"type"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(deadline, conn, &out); err != nil {
			t.Fatalf("reading for %s frame: %v", frameType, err)
		}
		if out.Type == frameType {
			return proto.Outbound{Type: out.Type, Error: out.Error}, out.Data
		}
	}
}
