package api

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/profile"
)

// ListProfiles handles GET /api/admin/profiles.
func (h *Handler) ListProfiles(c *gin.Context) {
	saved, err := h.profiles.List()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to list profiles"})
		return
	}

	presets := make([]string, 0, len(profile.Presets))
	for name := range profile.Presets {
		presets = append(presets, name)
	}
	sort.Strings(presets)

	c.JSON(http.StatusOK, gin.H{"presets": presets, "saved": saved})
}

type saveProfileRequest struct {
	Name    string          `json:"name" binding:"required"`
	Profile profile.Profile `json:"profile" binding:"required"`
}

// SaveProfile handles POST /api/admin/profiles.
func (h *Handler) SaveProfile(c *gin.Context) {
	var req saveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.profiles.Save(req.Name, req.Profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.audit(c, "", "PROFILE_SAVE", req.Name)
	c.Status(http.StatusCreated)
}
