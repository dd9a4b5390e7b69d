package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

// childStateResponse pairs a child with its current access state for the
// dashboard.
type childStateResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	State       any    `json:"state"`
}

// ListChildren handles GET /api/admin/children: all children with their
// live decision, the data behind the dashboard.
func (h *Handler) ListChildren(c *gin.Context) {
	children, err := h.store.ListChildren(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to retrieve children"})
		return
	}

	now := h.now()
	out := make([]childStateResponse, 0, len(children))
	for _, child := range children {
		decision, err := h.engine.Decide(c.Request.Context(), child.Username, now, false)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
			return
		}
		out = append(out, childStateResponse{
			Username:    child.Username,
			DisplayName: child.DisplayName,
			State:       decision,
		})
	}
	c.JSON(http.StatusOK, out)
}

type createChildRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

// CreateChild handles POST /api/admin/children.
func (h *Handler) CreateChild(c *gin.Context) {
	var req createChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	child := model.Child{Username: req.Username, DisplayName: req.DisplayName}
	if err := h.store.CreateChild(c.Request.Context(), &child); err != nil {
		if errors.Is(err, store.ErrChildExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create child"})
		return
	}
	h.audit(c, child.Username, "CHILD_CREATE", child.DisplayName)
	c.JSON(http.StatusCreated, child)
}
