package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/Goitonthefloor/Kids-Control/config"
	"github.com/Goitonthefloor/Kids-Control/internal/auth"
	"github.com/Goitonthefloor/Kids-Control/internal/engine"
	"github.com/Goitonthefloor/Kids-Control/internal/mw"
	"github.com/Goitonthefloor/Kids-Control/internal/profile"
	"github.com/Goitonthefloor/Kids-Control/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, eng *engine.Engine, sessions *auth.Sessions, authn auth.Authenticator, profiles *profile.Manager, webpushOptions *webpush.Options, loc *time.Location, childViewToken string, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, eng, sessions, authn, profiles, webpushOptions, loc, childViewToken)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	// Read-only child status, outside the API group so a misbehaving
	// agent hammering /api cannot starve it.
	r.GET("/k/:user", handler.ChildView)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Client agent endpoint. Never cached: the poll is the usage meter.
		api.GET("/check-access", handler.CheckAccess)

		api.POST("/login", handler.Login)
		api.POST("/logout", handler.Logout)

		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)

		admin := api.Group("/admin")
		admin.Use(mw.RequireSession(sessions))
		{
			admin.GET("/children", handler.ListChildren)
			admin.POST("/children", handler.CreateChild)

			admin.GET("/decision-trace/:user", handler.DecisionTrace)
			admin.GET("/usage/:user", handler.UsageHistory)
			admin.POST("/reset-daily/:user", handler.ResetDaily)

			admin.POST("/grant/:user/hour", handler.GrantHour)
			admin.POST("/grant/:user/day", handler.GrantDay)

			admin.GET("/schedule/:user", handler.GetWeekSchedule)
			admin.PUT("/schedule/:user", handler.PutWeekSchedule)
			admin.POST("/schedule/:user/apply", handler.ApplyProfile)

			admin.GET("/policy/:user", handler.GetPolicy)
			admin.PUT("/policy/:user", handler.PutPolicy)

			admin.GET("/profiles", handler.ListProfiles)
			admin.POST("/profiles", handler.SaveProfile)

			admin.GET("/audit", handler.Audit)
		}
	}

	return r
}
