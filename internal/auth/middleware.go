package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubjectKey is the gin context key holding the verified token subject
const SubjectKey = "auth_subject"

// RequireBearer rejects requests without a valid HS256 bearer token. An empty
// secret disables the check.
func RequireBearer(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		subject, err := ParseToken(secret, strings.TrimSpace(token))
		if err != nil {
			logger.Warn("Rejected webhook token",
				zap.String("client_ip", c.ClientIP()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		c.Set(SubjectKey, subject)
		c.Next()
	}
}
