package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/geocoder89/vaulthub/internal/actorctx"
	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

const SessionCookieName = "jwt"

// Keep this small interface so tests can fake it easily.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (user.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireSession is the session gate. The token comes from a Bearer header
// or, failing that, the session cookie.
func (m *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := sessionToken(c)

		u, err := m.auth.Authenticate(c.Request.Context(), raw)
		if err != nil {
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind == apperr.KindInternal {
				slog.Default().ErrorContext(c.Request.Context(), "session_check_failed", "err", err)
				abortWithFailure(c, apperr.KindInternal.Status(), string(apperr.KindInternal), "Something went wrong, please try again later.")
				return
			}

			abortWithFailure(c, appErr.Kind.Status(), string(appErr.Kind), appErr.Message)
			return
		}

		// Stash identity on both contexts
		c.Set(CtxUser, u)
		c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), u))

		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); raw != "" {
			return raw
		}
	}

	if raw, err := c.Cookie(SessionCookieName); err == nil {
		return raw
	}

	return ""
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}
