package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/mw"
)

// requireChild resolves the :user path parameter to an existing child, or
// aborts with 404.
func (h *Handler) requireChild(c *gin.Context) *model.Child {
	user := c.Param("user")
	child, err := h.store.GetChild(c.Request.Context(), user)
	if err != nil {
		log.Printf("resolve child %q: %v", user, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return nil
	}
	if child == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown child"})
		return nil
	}
	return child
}

// DecisionTrace handles GET /api/admin/decision-trace/:user, the
// explainability view: the same decision the agent would get, plus the
// debug trace.
func (h *Handler) DecisionTrace(c *gin.Context) {
	user := c.Param("user")
	decision, err := h.engine.Decide(c.Request.Context(), user, h.now(), true)
	if err != nil {
		log.Printf("decision trace for %q: %v", user, err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "access unknown"})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// UsageHistory handles GET /api/admin/usage/:user.
func (h *Handler) UsageHistory(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	rows, err := h.store.UsageHistory(c.Request.Context(), child.Username, 30)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve usage"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// ResetDaily handles POST /api/admin/reset-daily/:user, deleting today's
// usage counter so the child's budget starts over.
func (h *Handler) ResetDaily(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	day := h.today()
	if err := h.store.ResetDailyUsage(c.Request.Context(), child.Username, day); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to reset usage"})
		return
	}
	h.audit(c, child.Username, "RESET_DAILY", day)
	c.JSON(http.StatusOK, gin.H{"user": child.Username, "day": day})
}

// GrantHour handles POST /api/admin/grant/:user/hour. Grants stack: the
// new granted_until extends from the later of now and the current
// maximum, so two quick grants add up to two hours.
func (h *Handler) GrantHour(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	actor := c.GetString(mw.SessionUserKey)
	until, err := h.store.ExtendTimedOverride(c.Request.Context(), child.Username, actor, h.now().UTC(), time.Hour)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to grant"})
		return
	}
	h.audit(c, child.Username, "GRANT_HOUR", fmt.Sprintf("until %s", until.Format(time.RFC3339)))
	c.JSON(http.StatusOK, gin.H{"user": child.Username, "granted_until": until})
}

// GrantDay handles POST /api/admin/grant/:user/day, toggling the
// "unlimited today" override.
func (h *Handler) GrantDay(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	ovr, err := h.store.ToggleDayOverride(c.Request.Context(), child.Username, h.today(), h.now().UTC())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle day override"})
		return
	}
	action := "GRANT_DAY_OFF"
	if ovr.Enabled {
		action = "GRANT_DAY_ON"
	}
	h.audit(c, child.Username, action, ovr.Day)
	c.JSON(http.StatusOK, ovr)
}

// Audit handles GET /api/admin/audit.
func (h *Handler) Audit(c *gin.Context) {
	entries, err := h.store.RecentAudit(c.Request.Context(), 100)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve audit log"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
