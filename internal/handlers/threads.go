package handlers

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"inbox-service/internal/directory"
	"inbox-service/internal/models"
	"inbox-service/internal/preferences"
	"inbox-service/internal/registry"
	"inbox-service/internal/repositories"
	"inbox-service/internal/telemetry"
	"inbox-service/internal/token"
	"inbox-service/internal/unread"
)

// ThreadHandler manages the inbox list, thread resolution, participant
// preferences and receipts.
type ThreadHandler struct {
	reg      *registry.Registry
	threads  repositories.ThreadRepository
	messages repositories.MessageRepository
	prefs    *preferences.Controller
	engine   *unread.Engine
	dir      directory.Service
	audit    *telemetry.AuditEmitter
}

// NewThreadHandler builds a ThreadHandler.
func NewThreadHandler(reg *registry.Registry, threads repositories.ThreadRepository, messages repositories.MessageRepository, prefs *preferences.Controller, engine *unread.Engine, dir directory.Service, audit *telemetry.AuditEmitter) *ThreadHandler {
	return &ThreadHandler{
		reg:      reg,
		threads:  threads,
		messages: messages,
		prefs:    prefs,
		engine:   engine,
		dir:      dir,
		audit:    audit,
	}
}

// ListInbox returns thread summaries for the authenticated viewer:
// existing threads over visible connections and accepted trips, with
// unread counts and preference state. Archived threads are excluded
// unless ?archived=1.
func (h *ThreadHandler) ListInbox(c *gin.Context) {
	ctx := c.Request.Context()
	viewerID := c.GetInt("userID")
	includeArchived := c.Query("archived") == "1"

	conns, err := h.dir.VisibleConnections(ctx, viewerID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load connections"})
		return
	}
	tripIDs, err := h.dir.AcceptedTripIDs(ctx, viewerID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load trips"})
		return
	}

	connScopes := make([]int, 0, len(conns))
	for _, conn := range conns {
		connScopes = append(connScopes, conn.ConnectionID)
	}

	connThreads, err := h.threads.ListByScopes(ctx, models.KindConnection, connScopes)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}
	tripThreads, err := h.threads.ListByScopes(ctx, models.KindTrip, tripIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}

	summaries := make([]models.ThreadSummary, 0, len(connThreads)+len(tripThreads))
	for _, thread := range append(connThreads, tripThreads...) {
		summary, err := h.summarize(c, thread, viewerID, conns)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load thread state"})
			return
		}
		if summary.Archived && !includeArchived {
			continue
		}
		summaries = append(summaries, summary)
	}

	sortSummaries(summaries)
	c.JSON(http.StatusOK, gin.H{"threads": summaries, "local_only_mode": h.prefs.LocalOnly()})
}

func (h *ThreadHandler) summarize(c *gin.Context, thread models.Thread, viewerID int, conns []directory.Connection) (models.ThreadSummary, error) {
	ctx := c.Request.Context()

	state, err := h.prefs.Get(ctx, thread.ID, viewerID)
	if err != nil {
		return models.ThreadSummary{}, err
	}
	unreadCount, err := h.engine.UnreadCount(ctx, thread.ID, viewerID)
	if err != nil {
		return models.ThreadSummary{}, err
	}
	manual, err := h.engine.ManualUnread(thread.ID, viewerID)
	if err != nil {
		return models.ThreadSummary{}, err
	}

	summary := models.ThreadSummary{
		Thread:         thread,
		Token:          token.Format(thread.Kind, thread.ScopeID),
		UnreadCount:    unreadCount,
		Archived:       state.Archived(),
		Muted:          state.MutedUntil != nil,
		PinnedAt:       state.PinnedAt,
		ManualUnread:   manual,
		LocalOnlyState: h.prefs.LocalOnly(),
	}

	if thread.Kind == models.KindConnection {
		if id, ok := directory.CounterpartFor(conns, thread.ScopeID); ok {
			summary.CounterpartID = id
		}
	}

	latest, err := h.messages.Latest(ctx, thread.ID)
	if err == nil {
		summary.LastMessage = &latest
	} else if !errors.Is(err, repositories.ErrMessageNotFound) {
		return models.ThreadSummary{}, err
	}

	return summary, nil
}

// sortSummaries orders the inbox: pinned threads first (most recently
// pinned on top), then by last activity.
func sortSummaries(summaries []models.ThreadSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		pi, pj := summaries[i].PinnedAt, summaries[j].PinnedAt
		if (pi != nil) != (pj != nil) {
			return pi != nil
		}
		if pi != nil && pj != nil && !pi.Equal(*pj) {
			return pi.After(*pj)
		}
		return lastActivity(summaries[i]).After(lastActivity(summaries[j]))
	})
}

func lastActivity(s models.ThreadSummary) time.Time {
	if s.LastMessage != nil {
		return s.LastMessage.CreatedAt
	}
	return s.Thread.CreatedAt
}

// ResolveThread creates or fetches the thread behind a token.
func (h *ThreadHandler) ResolveThread(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tok, err := token.Parse(req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread token"})
		return
	}

	thread, counterpartID, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"thread":         thread,
		"token":          tok.String(),
		"counterpart_id": counterpartID,
	})
}

// ComposeTargets lists where the viewer can start a new thread from:
// accepted connections and accepted trips. Derived, never persisted.
func (h *ThreadHandler) ComposeTargets(c *gin.Context) {
	ctx := c.Request.Context()
	viewerID := c.GetInt("userID")

	conns, err := h.dir.VisibleConnections(ctx, viewerID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load connections"})
		return
	}
	tripIDs, err := h.dir.AcceptedTripIDs(ctx, viewerID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load trips"})
		return
	}

	targets := make([]models.ComposeTarget, 0, len(conns)+len(tripIDs))
	for _, conn := range conns {
		targets = append(targets, models.ComposeTarget{
			Token:         token.Format(models.KindConnection, conn.ConnectionID),
			Kind:          models.KindConnection,
			ScopeID:       conn.ConnectionID,
			CounterpartID: conn.CounterpartID,
		})
	}
	for _, tripID := range tripIDs {
		targets = append(targets, models.ComposeTarget{
			Token:   token.Format(models.KindTrip, tripID),
			Kind:    models.KindTrip,
			ScopeID: tripID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"targets": targets})
}
