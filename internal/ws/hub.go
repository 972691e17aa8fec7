package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"inbox-service/internal/models"
	"inbox-service/internal/observability"
)

// Hub maintains active websocket rooms, one per thread token. Connection
// and trip threads share the same room machinery; the token is the room
// key everywhere.
type Hub struct {
	rooms    map[string]map[*websocket.Conn]bool
	connInfo map[string]map[*websocket.Conn]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*websocket.Conn]bool),
		connInfo: make(map[string]map[*websocket.Conn]ConnInfo),
	}
}

// AddClient registers a websocket connection to a thread room.
func (h *Hub) AddClient(token string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[token]; !ok {
		h.rooms[token] = make(map[*websocket.Conn]bool)
	}
	h.rooms[token][conn] = true
	if _, ok := h.connInfo[token]; !ok {
		h.connInfo[token] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[token][conn] = info
}

// RemoveClient removes a websocket connection from a thread room.
func (h *Hub) RemoveClient(token string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[token]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, token)
		}
	}
	if infos, ok := h.connInfo[token]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, token)
		}
	}
}

// BroadcastMessage sends a new message to all clients in the thread room.
func (h *Hub) BroadcastMessage(token string, msg models.Message) {
	h.broadcast(token, models.ThreadEvent{Type: "message", Message: &msg})
}

// BroadcastDeletion notifies clients that the sender removed a message.
func (h *Hub) BroadcastDeletion(token string, messageID int) {
	h.broadcast(token, models.ThreadEvent{Type: "message_removed", MessageID: messageID})
}

// BroadcastReactions pushes a message's updated reaction aggregates.
func (h *Hub) BroadcastReactions(token string, messageID int, aggs []models.ReactionAggregate) {
	h.broadcast(token, models.ThreadEvent{Type: "reactions", MessageID: messageID, Reactions: aggs})
}

// BroadcastTyping fans out a typing signal. Purely ephemeral: no
// persistence, no replay; consumers expire the indicator on their own.
func (h *Hub) BroadcastTyping(token string, userID int) {
	h.broadcast(token, models.ThreadEvent{Type: "typing", UserID: userID})
}

func (h *Hub) broadcast(token string, event models.ThreadEvent) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[token]))
	for conn := range h.rooms[token] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.publishWSError(token, conn, err)
			h.RemoveClient(token, conn)
		}
	}
}

func (h *Hub) publishWSError(token string, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(token, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        info.Kind,
			"token":       token,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.threads", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(info.Kind, "ws_error")
}

func (h *Hub) getConnInfo(token string, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[token]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
