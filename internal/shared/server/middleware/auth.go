package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobboard-backend/internal/shared/auth"
	"jobboard-backend/internal/shared/server/respond"
)

const (
	userIDKey    = "userId"
	principalKey = "principal"
)

const (
	msgInvalidToken  = "Невалидный токен"
	msgInactiveUser  = "Пользователь неактивен"
	msgNeedVerified  = "Необходимо подтвердить email"
	msgNotAuthorized = "Ошибка авторизации"
)

// ErrPrincipalNotFound is returned by loaders when the token subject no longer exists.
var ErrPrincipalNotFound = errors.New("principal not found")

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token, wantType string) (auth.Claims, error)
}

// PrincipalLoader resolves a user id into a principal.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID string) (auth.Principal, error)
}

// Auth resolves an optional bearer token into a principal stored in context.
// Requests without an Authorization header pass through anonymously.
func Auth(tokens TokenVerifier, loader PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "invalid_token", msgInvalidToken, nil)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		if token == "" || tokens == nil {
			respond.Error(c, http.StatusUnauthorized, "invalid_token", msgInvalidToken, nil)
			return
		}

		claims, err := tokens.Verify(token, auth.TypeAccess)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "invalid_token", msgInvalidToken, nil)
			return
		}

		principal, err := loader.LoadPrincipal(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, ErrPrincipalNotFound) {
				respond.Error(c, http.StatusUnauthorized, "invalid_token", msgInvalidToken, nil)
				return
			}
			respond.Internal(c, err)
			return
		}

		c.Set(userIDKey, principal.ID)
		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireUser rejects anonymous (401) and inactive (400) callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", respond.MsgUnauthorized, nil)
			return
		}
		if !p.IsActive {
			respond.Error(c, http.StatusBadRequest, "inactive_user", msgInactiveUser, gin.H{"title": msgNotAuthorized})
			return
		}
		c.Next()
	}
}

// RequireVerified rejects callers whose email is not confirmed. Use after RequireUser.
func RequireVerified() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", respond.MsgUnauthorized, nil)
			return
		}
		if !p.IsVerified {
			respond.Error(c, http.StatusForbidden, "email_not_verified", msgNeedVerified, nil)
			return
		}
		c.Next()
	}
}

// RequireAdmin restricts a route to administrators. Use after RequireUser.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", respond.MsgUnauthorized, nil)
			return
		}
		if !p.IsAdmin {
			respond.Error(c, http.StatusForbidden, "forbidden", respond.MsgForbidden, nil)
			return
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// PrincipalFromContext fetches the principal set by the auth middleware.
func PrincipalFromContext(c *gin.Context) (auth.Principal, bool) {
	if c == nil {
		return auth.Principal{}, false
	}
	val, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	p, ok := val.(auth.Principal)
	return p, ok
}
