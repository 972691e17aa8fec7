package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"inbox-service/internal/faults"
	"inbox-service/internal/models"
	"inbox-service/internal/registry"
	"inbox-service/internal/token"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func auditUserID(c *gin.Context) *string {
	if userID := c.GetInt("userID"); userID != 0 {
		formatted := strconv.Itoa(userID)
		return &formatted
	}
	return nil
}

// parseThreadToken pulls and parses the :token route param, writing the
// error response itself on failure.
func parseThreadToken(c *gin.Context) (token.Token, bool) {
	tok, err := token.Parse(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread token"})
		return token.Token{}, false
	}
	return tok, true
}

// resolveThread resolves the token for the authenticated viewer, mapping
// AccessDenied to 403. Returns the thread and the counterpart id
// (zero for trip threads).
func resolveThread(c *gin.Context, reg *registry.Registry, tok token.Token) (models.Thread, int, bool) {
	viewerID := c.GetInt("userID")
	thread, counterpartID, err := reg.Resolve(c.Request.Context(), viewerID, tok)
	if err != nil {
		if errors.Is(err, faults.ErrAccessDenied) {
			c.JSON(http.StatusForbidden, gin.H{"error": "no standing relationship for thread"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve thread"})
		}
		return models.Thread{}, 0, false
	}
	return thread, counterpartID, true
}
