package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"campus_connect/internal/service"
	"campus_connect/pkg/logger"
)

const (
	ContextUserKey         = "user"
	ContextUserIDKey       = "user_id"
	ContextCapabilitiesKey = "capabilities"
)

type AuthMiddleware struct {
	authService service.AuthService
	log         logger.Logger
}

func NewAuthMiddleware(authService service.AuthService, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         log,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		principal, err := m.authService.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserKey, principal.User)
		c.Set(ContextUserIDKey, principal.User.ID)
		c.Set(ContextCapabilitiesKey, principal.Capabilities)
		c.Next()
	}
}

// RequireHookSecret guards the internal lifecycle hooks called by the
// group/event service.
func RequireHookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" || c.GetHeader("X-Internal-Secret") != secret {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid internal secret"})
			c.Abort()
			return
		}
		c.Next()
	}
}
