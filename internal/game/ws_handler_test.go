package game

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/numquiz/internal/game/scoring"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

func TestHandleWebSocket_RoundTrip(t *testing.T) {
	logger := zerolog.New(io.Discard)
	hub := ws.NewHub(logger)
	registry := newTestRegistry(RegistryOptions{MinPlayersToStart: 1})
	h := NewHandler(registry, hub, scoring.NewEngine(scoring.DefaultScoringConfig()), nil, nil, HandlerOptions{}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()
	defer hub.CloseAll()

	dial := func() *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		return conn
	}
	read := func(conn *websocket.Conn) ws.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg ws.Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	host := dial()
	defer host.Close()
	player := dial()
	defer player.Close()

	require.NoError(t, host.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := read(host)
	assert.Equal(t, ws.TypeError, msg.Type)

	require.NoError(t, host.WriteJSON(map[string]any{
		"type":       ws.TypeCreateRoom,
		"request_id": "r1",
		"payload":    map[string]json.RawMessage{"quiz": json.RawMessage(oneQuestionQuiz)},
	}))
	msg = read(host)
	require.Equal(t, ws.TypeRoomCreated, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)
	var created ws.RoomCreatedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &created))
	assert.Equal(t, srv.URL+"/join/"+created.RoomID, created.JoinURL)

	require.NoError(t, player.WriteJSON(map[string]any{
		"type":    ws.TypeJoinRoom,
		"payload": ws.JoinRoomPayload{RoomID: strings.ToLower(created.RoomID), Nickname: "ada"},
	}))
	msg = read(player)
	require.Equal(t, ws.TypeJoinResult, msg.Type)
	var joined ws.JoinResultPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &joined))
	assert.True(t, joined.Success)

	msg = read(host)
	assert.Equal(t, ws.TypePlayerList, msg.Type)

	require.NoError(t, host.Close())
	msg = read(player)
	assert.Equal(t, ws.TypeHostDisconnected, msg.Type)

	require.Eventually(t, func() bool { return registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRequestBaseURL(t *testing.T) {
	tests := map[string]struct {
		setup func(r *http.Request)
		want  string
	}{
		"plain": {
			setup: func(*http.Request) {},
			want:  "http://quiz.local",
		},
		"tls": {
			setup: func(r *http.Request) { r.TLS = &tls.ConnectionState{} },
			want:  "https://quiz.local",
		},
		"forwarded": {
			setup: func(r *http.Request) {
				r.Header.Set("X-Forwarded-Proto", "HTTPS, http")
				r.Header.Set("X-Forwarded-Host", "play.example.com")
			},
			want: "https://play.example.com",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://quiz.local/ws", nil)
			tc.setup(req)
			assert.Equal(t, tc.want, requestBaseURL(req))
		})
	}
}
