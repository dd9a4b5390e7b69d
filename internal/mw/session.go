package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Goitonthefloor/Kids-Control/internal/auth"
)

// SessionUserKey is the gin context key holding the authenticated parent.
const SessionUserKey = "session_user"

// RequireSession guards admin routes: requests without a valid session
// cookie are rejected with 401.
func RequireSession(sessions *auth.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
			return
		}
		username, err := sessions.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
			return
		}
		c.Set(SessionUserKey, username)
		c.Next()
	}
}
