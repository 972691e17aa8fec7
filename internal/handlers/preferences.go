package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"inbox-service/internal/models"
	"inbox-service/internal/observability"
)

// SetPreferences applies a partial participant-state patch. A deployment
// without the preference schema still succeeds: the write lands in the
// device-local store and the response says so.
func (h *ThreadHandler) SetPreferences(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	var patch models.ParticipantPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty patch"})
		return
	}

	viewerID := c.GetInt("userID")
	result, err := h.prefs.SetPreference(c.Request.Context(), thread.ID, viewerID, patch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store preferences"})
		return
	}

	for _, field := range result.LocalOnly {
		observability.IncLocalFallback(string(field))
	}
	h.audit.Emit(c.Request.Context(), "INFO", "preferences_updated", tok.String(), "", requestIDFromContext(c), auditUserID(c))

	c.JSON(http.StatusOK, result)
}

// GetPreferences returns the union of server and local-only state.
func (h *ThreadHandler) GetPreferences(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	viewerID := c.GetInt("userID")
	state, err := h.prefs.Get(c.Request.Context(), thread.ID, viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":             state,
		"local_only_fields": h.prefs.LocalOnlyFields(),
	})
}

// MarkRead advances the viewer's read position to now. The only way the
// unread count returns to zero.
func (h *ThreadHandler) MarkRead(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}

	viewerID := c.GetInt("userID")
	if err := h.engine.MarkRead(c.Request.Context(), thread.ID, viewerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark read"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": 0})
}

// MarkUnread raises the device-local manual unread flag. No peer-visible
// effect.
func (h *ThreadHandler) MarkUnread(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, _, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}
	if thread.Kind != models.KindConnection {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manual unread applies to connection threads only"})
		return
	}

	viewerID := c.GetInt("userID")
	if err := h.engine.MarkUnread(thread.ID, viewerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark unread"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Receipts returns the counterpart's read position and the single Seen
// marker anchor. Connection threads only.
func (h *ThreadHandler) Receipts(c *gin.Context) {
	tok, ok := parseThreadToken(c)
	if !ok {
		return
	}
	thread, counterpartID, ok := resolveThread(c, h.reg, tok)
	if !ok {
		return
	}
	if thread.Kind != models.KindConnection {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipts are only tracked on connection threads"})
		return
	}

	viewerID := c.GetInt("userID")
	receipt, err := h.engine.Receipts(c.Request.Context(), thread.ID, viewerID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load receipts"})
		return
	}
	c.JSON(http.StatusOK, receipt)
}
