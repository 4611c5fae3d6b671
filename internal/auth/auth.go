package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"keygate/internal/config"
)

// AdminAuthMiddleware guards the key-management surface with HTTP Basic
// auth. The username is fixed to "admin"; the password is checked against
// the configured bcrypt hash when present, otherwise against the plaintext
// password in constant time.
func AdminAuthMiddleware(cfg config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, password, hasAuth := c.Request.BasicAuth()
		if !hasAuth || user != "admin" || !checkPassword(cfg, password) {
			c.Header("WWW-Authenticate", `Basic realm="Restricted"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func checkPassword(cfg config.AdminConfig, candidate string) bool {
	if cfg.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.PasswordHash), []byte(candidate)) == nil
	}
	if cfg.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.Password), []byte(candidate)) == 1
}
