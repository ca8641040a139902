package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"attendance/internal/logging"
)

// Authenticate resolves the session cookie (or a bearer token) into a
// Principal on the request context, and adds the user to the request
// logger. It never aborts; RequireSession and RequireRole gate routes.
func (s *Sessions) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := s.tokenFrom(c)
		if tokenStr == "" {
			c.Next()
			return
		}
		p, err := s.Parse(c.Request.Context(), tokenStr)
		if err != nil {
			c.Next()
			return
		}
		ctx := WithPrincipal(c.Request.Context(), p)
		l := logging.FromContext(ctx, s.logger).With("user_id", p.UserID, "role", p.Role)
		c.Request = c.Request.WithContext(logging.ContextWithLogger(ctx, l))
		c.Next()
	}
}

func (s *Sessions) tokenFrom(c *gin.Context) string {
	if cookie, err := c.Cookie(s.cfg.CookieName); err == nil && cookie != "" {
		return cookie
	}
	authz := c.GetHeader("Authorization")
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}

// SetCookie writes the session cookie.
func (s *Sessions) SetCookie(c *gin.Context, sess Session) {
	maxAge := int(sess.ExpiresAt.Sub(s.now()).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, sess.Token, maxAge, "/", "", s.cfg.Secure, true)
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, "", -1, "/", "", s.cfg.Secure, true)
}

// Current returns the caller resolved by Authenticate.
func Current(c *gin.Context) Principal {
	return PrincipalFrom(c.Request.Context())
}

// RequireSession rejects anonymous requests.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Current(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Current(c)
		if !p.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Unauthorized"})
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Insufficient permissions"})
	}
}
