package middleware

import (
	"net/http"
	"strings"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/services"
	apperrors "relaychat/pkg/errors"
	"relaychat/pkg/logger"

	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// TokenFromRequest returns the bearer token if present, else the auth cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware requires a valid token and stores the caller's id on the
// gin context.
func AuthMiddleware(authService services.AuthService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request, cookieName)
		if token == "" {
			abortWithAppError(c, apperrors.NewUnauthorizedError("unauthorized - no token provided"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithAppError(c, apperrors.WrapError(err, apperrors.ErrCodeUnauthorized, "unauthorized - "+err.Error(), http.StatusUnauthorized))
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID.String()))
		c.Next()
	}
}

// UserID returns the id stored by AuthMiddleware.
func UserID(c *gin.Context) (domain.UserID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(domain.UserID)
	return id, ok && id != ""
}
