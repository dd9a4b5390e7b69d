package api

import (
	"log"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/auth"
	"github.com/Goitonthefloor/Kids-Control/internal/engine"
	"github.com/Goitonthefloor/Kids-Control/internal/model"
	"github.com/Goitonthefloor/Kids-Control/internal/mw"
	"github.com/Goitonthefloor/Kids-Control/internal/profile"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

const dayLayout = "2006-01-02"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store          store.Store
	engine         *engine.Engine
	sessions       *auth.Sessions
	authn          auth.Authenticator
	profiles       *profile.Manager
	webpush        *webpush.Options
	loc            *time.Location
	childViewToken string
	now            func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, eng *engine.Engine, sessions *auth.Sessions, authn auth.Authenticator, profiles *profile.Manager, webpushOptions *webpush.Options, loc *time.Location, childViewToken string) *Handler {
	return &Handler{
		store:          s,
		engine:         eng,
		sessions:       sessions,
		authn:          authn,
		profiles:       profiles,
		webpush:        webpushOptions,
		loc:            loc,
		childViewToken: childViewToken,
		now:            time.Now,
	}
}

// today returns the current local calendar day.
func (h *Handler) today() string {
	return h.now().In(h.loc).Format(dayLayout)
}

// audit appends an admin action to the audit log, best-effort.
func (h *Handler) audit(c *gin.Context, child, action, details string) {
	actor := c.GetString(mw.SessionUserKey)
	if actor == "" {
		actor = "unknown"
	}
	entry := model.AuditLog{
		At:      h.now().UTC(),
		Actor:   actor,
		Child:   child,
		Action:  action,
		Details: details,
	}
	if err := h.store.AppendAudit(c.Request.Context(), entry); err != nil {
		log.Printf("audit log append (%s): %v", action, err)
	}
}
