package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/profile"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

// GetWeekSchedule handles GET /api/admin/schedule/:user, always returning
// seven weekday rows (missing ones materialized with defaults).
func (h *Handler) GetWeekSchedule(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	week, err := h.store.WeekSchedule(c.Request.Context(), child.Username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve schedule"})
		return
	}
	c.JSON(http.StatusOK, week)
}

type putWeekRequest struct {
	Days []store.WeekDay `json:"days" binding:"required,len=7,dive"`
}

// PutWeekSchedule handles PUT /api/admin/schedule/:user with a full week.
func (h *Handler) PutWeekSchedule(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}

	var req putWeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, d := range req.Days {
		if d.Weekday < 0 || d.Weekday > 6 || d.StartMin < 0 || d.EndMin > 1440 || d.StartMin > d.EndMin || d.DailyMinutes < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid window for weekday %d", d.Weekday)})
			return
		}
	}

	if err := h.store.ApplyWeek(c.Request.Context(), child.Username, req.Days); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to save schedule"})
		return
	}
	h.audit(c, child.Username, "SCHEDULE_UPDATE", "")
	c.Status(http.StatusNoContent)
}

type applyProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// ApplyProfile handles POST /api/admin/schedule/:user/apply, loading a
// preset or saved profile into the child's week. Presets win over saved
// profiles of the same name.
func (h *Handler) ApplyProfile(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}

	var req applyProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prof, ok := profile.Presets[req.Name]
	if !ok {
		var err error
		prof, err = h.profiles.Load(req.Name)
		if errors.Is(err, profile.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown profile"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
			return
		}
	}

	days := prof.Days()
	week := make([]store.WeekDay, 0, 7)
	for wd, d := range days {
		week = append(week, store.WeekDay{
			Weekday:      wd,
			StartMin:     d.StartMin,
			EndMin:       d.EndMin,
			DailyMinutes: d.DailyMinutes,
		})
	}
	if err := h.store.ApplyWeek(c.Request.Context(), child.Username, week); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to apply profile"})
		return
	}
	h.audit(c, child.Username, "SCHEDULE_APPLY_PROFILE", req.Name)
	c.Status(http.StatusNoContent)
}

// GetPolicy handles GET /api/admin/policy/:user, returning defaults when
// no policy row exists yet.
func (h *Handler) GetPolicy(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}
	pol, err := h.store.GetPolicy(c.Request.Context(), child.Username)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve policy"})
		return
	}
	if pol == nil {
		pol = &model.ChildPolicy{
			Username:        child.Username,
			AfterExpiryMode: model.ModeLock,
			HardLock:        true,
			WarnMinutes:     10,
		}
	}
	c.JSON(http.StatusOK, pol)
}

type putPolicyRequest struct {
	AfterExpiryMode string `json:"after_expiry_mode" binding:"required,oneof=LOCK SCHOOL"`
	HardLock        bool   `json:"hard_lock"`
	WarnMinutes     *int   `json:"warn_minutes" binding:"required"`
}

// PutPolicy handles PUT /api/admin/policy/:user.
func (h *Handler) PutPolicy(c *gin.Context) {
	child := h.requireChild(c)
	if child == nil {
		return
	}

	var req putPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.WarnMinutes < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "warn_minutes must be >= 0"})
		return
	}

	pol := model.ChildPolicy{
		Username:        child.Username,
		AfterExpiryMode: req.AfterExpiryMode,
		HardLock:        req.HardLock,
		WarnMinutes:     *req.WarnMinutes,
	}
	if err := h.store.UpsertPolicy(c.Request.Context(), &pol); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to save policy"})
		return
	}
	h.audit(c, child.Username, "POLICY_UPDATE", fmt.Sprintf("mode=%s warn=%s", pol.AfterExpiryMode, strconv.Itoa(pol.WarnMinutes)))
	c.Status(http.StatusNoContent)
}
