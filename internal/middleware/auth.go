package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"repaytrack/internal/auth"
	apperrors "repaytrack/internal/errors"
)

const profileIDKey = "profileID"

// RequireAuth resolves the request's profile through provider and stores it
// in the context. When the provider is disabled every request passes and is
// attributed to the default profile.
func RequireAuth(provider auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if provider.Enabled() {
			header := c.GetHeader("Authorization")
			if header == "" {
				abortUnauthorized(c, "Authorization header is required")
				return
			}
			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || value == "" {
				abortUnauthorized(c, "Invalid authorization header format")
				return
			}
			token = value
		}

		profileID, err := provider.Authenticate(c.Request.Context(), token)
		if err != nil {
			if auth.IsAuthError(err) {
				abortUnauthorized(c, "Invalid or expired token")
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(profileIDKey, profileID)
		c.Next()
	}
}

// ProfileID returns the profile resolved by RequireAuth.
func ProfileID(c *gin.Context) (uint, bool) {
	id, ok := c.Get(profileIDKey)
	if !ok {
		return 0, false
	}
	profileID, ok := id.(uint)
	return profileID, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.WithMessage(apperrors.ErrUnauthorized, message))
}
