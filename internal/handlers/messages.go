package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
	"inbox-service/internal/observability"
	"inbox-service/internal/registry"
	"inbox-service/internal/reply"
	"inbox-service/internal/repositories"
	"inbox-service/internal/telemetry"
	"inbox-service/internal/ws"
)

// MessageHandler manages the message log and reactions of a thread.
type MessageHandler struct {
	reg        *registry.Registry
	messages   repositories.MessageRepository
	reactions  repositories.ReactionRepository
	hub        *ws.Hub
	audit      *telemetry.AuditEmitter
	dailyLimit int
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(reg *registry.Registry, messages repositories.MessageRepository, reactions repositories.ReactionRepository, hub *ws.Hub, audit *telemetry.AuditEmitter, dailyLimit int) *MessageHandler {
	return &MessageHandler{
		reg:        reg,
		messages:   messages,
		reactions:  reactions,
		hub:        hub,
		audit:      audit,
		dailyLimit: dailyLimit,
	}
}

// messageResponse decorates a stored message with its decoded reply
// target and display text. Removed messages keep their place in the log
// but carry no content.
type messageResponse struct {
	models.Message
	Text      string                     `json:"text"`
	ReplyToID string                     `json:"reply_to_id,omitempty"`
	Reactions []models.ReactionAggregate `json:"reactions,omitempty"`
}

func decorate(msg models.Message, aggs []models.ReactionAggregate) messageResponse {
	resp := messageResponse{Message: msg, Reactions: aggs}
	if msg.Removed {
		resp.Body = ""
		return resp
	}
	resp.ReplyToID, resp.Text = reply.Decode(msg.Body)
	return resp
}

// GetMessages returns the thread's messages in total order with reaction
// aggregates.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	msgs, err := h.messages.List(c.Request.Context(), thread.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	viewerID := c.GetInt("userID")
	messageIDs := make([]int, 0, len(msgs))
	for _, m := range msgs {
		messageIDs = append(messageIDs, m.ID)
	}
	aggsByMessage, err := h.reactions.AggregateForMessages(c.Request.Context(), messageIDs, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, decorate(m, aggsByMessage[m.ID]))
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostMessage appends a message to the thread. The daily send limit is
// enforced here, inside the append transaction: client staging is
// optimistic only, never authoritative.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	var req struct {
		Content   string `json:"content" binding:"required"`
		ReplyToID string `json:"reply_to_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	viewerID := c.GetInt("userID")
	body := reply.Encode(req.ReplyToID, req.Content)

	msg, err := h.messages.Append(c.Request.Context(), thread.ID, viewerID, body, h.dailyLimit)
	if errors.Is(err, faults.ErrDailyLimitReached) {
		observability.IncSend("daily_limit")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":    "daily send limit reached",
			"reset_at": nextMidnight(time.Now()).Format(time.RFC3339),
		})
		return
	}
	if err != nil {
		observability.IncSend("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncSend("sent")
	h.hub.BroadcastMessage(tok.String(), msg)
	h.audit.Emit(c.Request.Context(), "INFO", "message_sent", tok.String(), "", requestIDFromContext(c), auditUserID(c))
	_ = observability.PublishEvent(c.Request.Context(), "messages.created", observability.EventEnvelope{
		EventType: "messages",
		EventName: "message_created",
		Payload: map[string]interface{}{
			"thread_token": tok.String(),
			"message_id":   msg.ID,
			"sender_id":    msg.SenderID,
		},
	}, observability.BuildHeaders(requestIDFromContext(c), ""))

	c.JSON(http.StatusCreated, decorate(msg, nil))
}

// DeleteMessage soft-deletes a message. Only the original sender may do
// this; anyone else gets 403.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ThreadID != thread.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to thread"})
		return
	}

	viewerID := c.GetInt("userID")
	if err := h.messages.Remove(c.Request.Context(), messageID, viewerID); err != nil {
		if errors.Is(err, faults.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can remove a message"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove message"})
		return
	}

	h.hub.BroadcastDeletion(tok.String(), messageID)
	h.audit.Emit(c.Request.Context(), "INFO", "message_removed", tok.String(), "", requestIDFromContext(c), auditUserID(c))
	c.Status(http.StatusNoContent)
}

// ToggleReaction flips the viewer's (message, emoji) reaction and returns
// the updated aggregates.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ThreadID != thread.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to thread"})
		return
	}

	viewerID := c.GetInt("userID")
	aggs, err := h.reactions.Toggle(c.Request.Context(), messageID, viewerID, req.Emoji)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle reaction"})
		return
	}

	h.hub.BroadcastReactions(tok.String(), messageID, aggs)
	c.JSON(http.StatusOK, gin.H{"reactions": aggs})
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
