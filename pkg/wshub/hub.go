package wshub

import (
	"context"
	"errors"
	"sync"

	"github.com/addisride/dispatch/pkg/logger"
	wrap "github.com/addisride/dispatch/pkg/logger/wrapper"
	"github.com/google/uuid"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
)

// ConnectionHub stores and manages all active WebSocket connections,
// keyed by user id. One live connection per user.
type ConnectionHub struct {
	clients map[uuid.UUID]*Conn
	l       logger.Logger
	mu      sync.Mutex
}

func NewConnHub(l logger.Logger) *ConnectionHub {
	return &ConnectionHub{
		clients: make(map[uuid.UUID]*Conn),
		l:       l,
	}
}

// Add registers a new connection in the hub. If a connection for this
// entity already exists, the old one is closed and replaced.
func (h *ConnectionHub) Add(newConn *Conn) error {
	if newConn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithAction(context.Background(), "add_ws_connection")

	if existing, ok := h.clients[newConn.entityID]; ok {
		h.l.Warn(ctx,
			"replacing existing connection",
			"entity_id", existing.entityID,
		)
		if err := existing.Close(); err != nil {
			h.l.Warn(ctx,
				"failed to close existing conn",
				"entity_id", existing.entityID,
				"err", err.Error(),
			)
		}
	}

	h.clients[newConn.entityID] = newConn

	return nil
}

// Delete removes and closes the connection with the given id.
// It is a no-op when a different connection has already replaced conn.
func (h *ConnectionHub) Delete(entityID uuid.UUID, socketID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithAction(context.Background(), "ws_connection_delete")

	conn, ok := h.clients[entityID]
	if !ok {
		return ErrConnIsNotFound
	}

	// Reconnects replace the map entry before the old read loop exits.
	if socketID != "" && conn.socketID != socketID {
		return nil
	}

	if err := conn.Close(); err != nil {
		h.l.Warn(ctx,
			"failed to close conn",
			"entity_id", conn.entityID,
			"err", err.Error(),
		)
	}

	delete(h.clients, entityID)

	return nil
}

// SendTo delivers a message to a specific client by id.
// Returns ErrConnIsNotFound when there is no live connection.
func (h *ConnectionHub) SendTo(id uuid.UUID, msg map[string]any) error {
	h.mu.Lock()
	conn, ok := h.clients[id]
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}
	return conn.Send(msg)
}

// IsConnected reports whether a live connection exists for id.
func (h *ConnectionHub) IsConnected(id uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.clients[id]
	return ok
}

// Count returns the number of live connections.
func (h *ConnectionHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients)
}

// Close closes every websocket connection.
func (h *ConnectionHub) Close() {
	ctx := wrap.WithAction(context.Background(), "hub_close")

	// copy clients under the lock, close outside of it
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		_ = h.Delete(conn.entityID, conn.socketID)
	}

	h.l.Info(ctx, "all websocket connections closed gracefully")
}
