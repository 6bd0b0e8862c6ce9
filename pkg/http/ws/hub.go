package ws

import (
	"sync"

	"github.com/rs/zerolog"
)

// Hub manages WebSocket connections and the room broadcast groups they belong to.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection // conn_id -> connection
	rooms       map[string][]string    // room_id -> []conn_id
	logger      zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		rooms:       make(map[string][]string),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// RegisterConnection adds a connection under its id.
func (h *Hub) RegisterConnection(connID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, exists := h.connections[connID]; exists {
		old.Close()
	}

	h.connections[connID] = conn
	h.logger.Debug().Str("conn_id", connID).Int("connections", len(h.connections)).Msg("connection registered")
}

// UnregisterConnection closes and removes a connection and drops it from every room.
func (h *Hub) UnregisterConnection(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[connID]; exists {
		conn.Close()
		delete(h.connections, connID)
		h.logger.Debug().Str("conn_id", connID).Msg("connection unregistered")
	}

	for roomID := range h.rooms {
		h.removeMemberLocked(roomID, connID)
	}
}

// JoinRoom adds a connection to a room's broadcast group.
func (h *Hub) JoinRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomID]
	for _, id := range members {
		if id == connID {
			return // already joined
		}
	}
	h.rooms[roomID] = append(members, connID)
}

// LeaveRoom removes a connection from a room's broadcast group.
func (h *Hub) LeaveRoom(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeMemberLocked(roomID, connID)
}

// CloseRoom drops a room's broadcast group. Member connections stay open.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms, roomID)
}

func (h *Hub) removeMemberLocked(roomID, connID string) {
	members := h.rooms[roomID]
	for i, id := range members {
		if id == connID {
			h.rooms[roomID] = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

// RoomMembers returns a copy of the connection ids in a room.
func (h *Hub) RoomMembers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[roomID]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// BroadcastToRoom sends a message to every connection in a room.
// Delivery continues past failed members; the first error is returned.
func (h *Hub) BroadcastToRoom(roomID string, msg Message) error {
	var firstErr error
	for _, connID := range h.RoomMembers(roomID) {
		if err := h.SendToConnection(connID, msg); err != nil {
			h.logger.Warn().Err(err).Str("room_id", roomID).Str("conn_id", connID).Msg("room broadcast send failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendToConnection delivers a message to a single connection.
func (h *Hub) SendToConnection(connID string, msg Message) error {
	h.mu.RLock()
	conn, exists := h.connections[connID]
	h.mu.RUnlock()

	if !exists {
		return ErrConnectionNotFound
	}

	return conn.Send(msg)
}

// CloseAll closes every registered connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, conn := range h.connections {
		conn.Close()
		delete(h.connections, connID)
	}
	h.rooms = make(map[string][]string)
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "Connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
