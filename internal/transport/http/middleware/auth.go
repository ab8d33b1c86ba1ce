package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row/server/pkg/httputil"
)

const usernameKey = "username"

// TokenVerifier resolves a login token to its username.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// Auth requires a valid token from the auth cookie or the Authorization
// header and stores the username on the context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := httputil.GetTokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		username, err := verifier.VerifyToken(tokenString)
		if err != nil {
			httputil.ClearAuthCookie(c.Writer)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set(usernameKey, username)
		c.Next()
	}
}

// Username returns the identity stored by Auth.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}
