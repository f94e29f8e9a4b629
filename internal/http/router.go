package http

import (
	"context"

	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/geocoder89/vaulthub/internal/http/handlers"
	"github.com/geocoder89/vaulthub/internal/http/middlewares"
	"github.com/geocoder89/vaulthub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// AuthService is everything the HTTP layer needs from the account flow.
type AuthService interface {
	handlers.AuthFlow
	Authenticate(ctx context.Context, rawToken string) (user.User, error)
}

type RouterDeps struct {
	Env         string
	ServiceName string
	Tracing     bool

	Auth   AuthService
	Vault  handlers.VaultFlow
	Cookie handlers.SessionCookie

	CORSOrigins []string

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Ready    map[string]handlers.Pinger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.CustomRecovery(func(ctx *gin.Context, _ any) {
		handlers.RespondInternal(ctx, "Something went wrong")
		ctx.Abort()
	}))
	r.Use(middlewares.RequestID())
	if deps.Tracing {
		r.Use(otelgin.Middleware(deps.ServiceName))
	}
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders(deps.Env == "prod"))
	if len(deps.CORSOrigins) > 0 {
		r.Use(middlewares.CORS(deps.CORSOrigins))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health + metrics
	h := handlers.NewHealthHandler(deps.Ready)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Cookie)
	vaultHandler := handlers.NewVaultHandler(deps.Vault)
	authMiddleware := middlewares.NewAuthMiddleware(deps.Auth)

	r.POST("/signup", authHandler.SignUp)
	// the confirmation link is opened from a mail client
	r.GET("/confirm/:confirmToken", authHandler.ConfirmSignup)
	r.POST("/confirm/:confirmToken", authHandler.ConfirmSignup)
	r.POST("/login", authHandler.Login)
	r.POST("/logout", authHandler.Logout)

	me := r.Group("/me", authMiddleware.RequireSession())
	me.PATCH("", authHandler.UpdateMe)
	me.PATCH("/password", authHandler.ChangePassword)

	passwords := r.Group("/passwords", authMiddleware.RequireSession())
	passwords.POST("", vaultHandler.Create)
	passwords.GET("", vaultHandler.ListMine)
	passwords.PATCH("/:id", vaultHandler.Update)
	passwords.DELETE("/:id", vaultHandler.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondNotFound(ctx, "Can not find "+ctx.Request.URL.Path+" on this server")
	})

	return r
}
