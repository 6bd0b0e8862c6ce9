package game

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	httperrors "github.com/gokatarajesh/numquiz/pkg/http/errors"
	ws "github.com/gokatarajesh/numquiz/pkg/http/ws"
)

// HandleWebSocket upgrades the request and feeds the connection's frames into
// the command loop. Connections are anonymous; roles are bound per room.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, requestBaseURL(r))
}

// HandleConnection serves an upgraded connection until the peer goes away.
func (h *Handler) HandleConnection(conn *websocket.Conn, baseURL string) {
	connID := uuid.NewString()
	logger := h.logger.With().Str("conn_id", connID).Logger()

	wsConn := ws.NewConnection(conn, h.connOpts, logger)
	h.hub.RegisterConnection(connID, wsConn)

	if !h.enqueue(inbound{kind: eventConnect, connID: connID, baseURL: baseURL}) {
		h.hub.UnregisterConnection(connID)
		return
	}

	// Start write pump
	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		if !h.Enqueue(connID, msg) {
			return errLoopStopped
		}
		return nil
	}, func(err error) {
		logger.Debug().Err(err).Msg("invalid frame")
		msg, encErr := ws.NewMessage(ws.TypeError, ws.ErrorPayload{
			Code:    httperrors.ErrCodeInvalidPayload,
			Message: "Message must be a JSON object with a type",
		}, "")
		if encErr == nil {
			_ = h.hub.SendToConnection(connID, msg)
		}
	})

	// Cleanup on disconnect
	if !h.enqueue(inbound{kind: eventDisconnect, connID: connID}) {
		h.hub.UnregisterConnection(connID)
	}
}

var errLoopStopped = &Error{Kind: KindState, Code: httperrors.ErrCodeServiceUnavailable, Message: "Server is shutting down"}

// requestBaseURL reconstructs the origin the client used to reach us.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}

	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host == "" {
		return ""
	}
	return scheme + "://" + host
}
