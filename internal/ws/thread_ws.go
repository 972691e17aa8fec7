package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"inbox-service/internal/directory"
	"inbox-service/internal/faults"
	"inbox-service/internal/observability"
	"inbox-service/internal/registry"
	"inbox-service/internal/token"
)

// ThreadWebSocketHandler handles thread websocket connections, including
// the typing presence channel.
type ThreadWebSocketHandler struct {
	hub      *Hub
	registry *registry.Registry
	dir      directory.Service
	throttle *TypingThrottle
}

// NewThreadWebSocketHandler constructs a ThreadWebSocketHandler.
func NewThreadWebSocketHandler(hub *Hub, reg *registry.Registry, dir directory.Service) *ThreadWebSocketHandler {
	return &ThreadWebSocketHandler{
		hub:      hub,
		registry: reg,
		dir:      dir,
		throttle: NewTypingThrottle(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundFrame is what clients may send over the socket. Conversation
// content never travels this way; only the ephemeral typing signal does.
type inboundFrame struct {
	Type string `json:"type"`
}

// Handle upgrades the connection and registers the client in the thread
// room.
func (h *ThreadWebSocketHandler) Handle(c *gin.Context) {
	tok, err := token.Parse(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread token"})
		return
	}

	ctx, span := otel.Tracer("inbox-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	bearer := c.GetHeader("Authorization")
	if bearer == "" {
		if q := c.Query("token_auth"); q != "" {
			bearer = "Bearer " + q
		}
	}

	userID, err := h.validateToken(c, bearer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	_, _, err = h.registry.Resolve(ctx, userID, tok)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, faults.ErrAccessDenied) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": "not authorized for thread"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	roomKey := tok.String()
	traceID := span.SpanContext().TraceID().String()
	requestID := c.GetHeader("X-Request-Id")
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		Kind:        string(tok.Kind),
		DeviceID:    c.GetHeader("X-Device-Id"),
		IP:          c.ClientIP(),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(roomKey, conn, info)

	observability.IncWSActive(info.Kind)
	observability.IncWSEvent(info.Kind, "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.threads", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsPayload(info, roomKey, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(roomKey, conn)
			h.throttle.Forget(roomKey, userID)
			observability.DecWSActive(info.Kind)
			observability.IncWSEvent(info.Kind, "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.threads", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsPayload(info, roomKey, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent(info.Kind, "ws_error")
				}
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(raw, &frame); err != nil {
				continue
			}
			if frame.Type == "typing" && h.throttle.Allow(roomKey, userID) {
				h.hub.BroadcastTyping(roomKey, userID)
				observability.IncWSEvent(info.Kind, "typing")
			}
		}
	}()
}

func (h *ThreadWebSocketHandler) validateToken(c *gin.Context, header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 {
		return 0, errors.New("invalid token")
	}
	return h.dir.VerifyToken(c.Request.Context(), parts[1])
}

func wsPayload(info ConnInfo, roomKey, event string, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        info.Kind,
			"token":       roomKey,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
