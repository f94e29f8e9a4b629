package handlers

import (
	"net/http"
	"time"

	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// SessionCookie controls the session cookie the handlers set.
type SessionCookie struct {
	TTL    time.Duration
	Secure bool
}

func (c SessionCookie) set(ctx *gin.Context, raw string) {
	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		middlewares.SessionCookieName,
		raw,
		int(c.TTL.Seconds()),
		"/",
		"",
		c.Secure,
		true, // HttpOnly.
	)
}

// clear replaces the cookie with an already expired one.
func (c SessionCookie) clear(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		middlewares.SessionCookieName,
		"loggedout",
		-1,
		"/",
		"",
		c.Secure,
		true,
	)
}
