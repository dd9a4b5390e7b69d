package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CheckAccess handles GET /api/check-access?user=<u>, the endpoint the
// client agent polls. The poll itself is the usage signal, so this call
// advances the heartbeat as a side effect. A store failure yields 503:
// the agent must treat access as unknown, never as allowed.
func (h *Handler) CheckAccess(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user is required"})
		return
	}

	decision, err := h.engine.Decide(c.Request.Context(), user, h.now(), false)
	if err != nil {
		log.Printf("check-access for %q: %v", user, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "access unknown"})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// ChildView handles GET /k/:user?t=<token>, a read-only status for the
// child's own device, optionally guarded by a shared token.
func (h *Handler) ChildView(c *gin.Context) {
	if h.childViewToken != "" && c.Query("t") != h.childViewToken {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized"})
		return
	}

	user := c.Param("user")
	decision, err := h.engine.Decide(c.Request.Context(), user, h.now(), false)
	if err != nil {
		log.Printf("child view for %q: %v", user, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "access unknown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": user, "state": decision})
}
