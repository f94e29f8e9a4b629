package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/vaulthub/internal/auth"
	"github.com/geocoder89/vaulthub/internal/authflow"
	"github.com/geocoder89/vaulthub/internal/config"
	"github.com/geocoder89/vaulthub/internal/db"
	httpx "github.com/geocoder89/vaulthub/internal/http"
	"github.com/geocoder89/vaulthub/internal/http/handlers"
	"github.com/geocoder89/vaulthub/internal/notifications"
	"github.com/geocoder89/vaulthub/internal/observability"
	"github.com/geocoder89/vaulthub/internal/queue/redisclient"
	"github.com/geocoder89/vaulthub/internal/repo/memory"
	"github.com/geocoder89/vaulthub/internal/repo/postgres"
	"github.com/geocoder89/vaulthub/internal/security"
	"github.com/geocoder89/vaulthub/internal/vaultflow"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/crypto/bcrypt"
)

const serviceName = "vaulthub-api"

// app holds what main has to close on the way out.
type app struct {
	closers []func()
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func main() {
	// Load the config set up
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	cfg = cfg.WithDevDefaults()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	a := &app{}
	defer a.close()

	tracing := false
	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(startCtx, observability.TracerConfig{
			ServiceName: serviceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OTelEndpoint,
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			log.Warn("tracing disabled", "err", err)
		} else {
			tracing = true
			a.onClose(func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdown(ctx)
			})
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	ready := map[string]handlers.Pinger{}

	users, entries, err := openStores(startCtx, cfg, prom, ready, a)
	if err != nil {
		return err
	}

	notifier := buildNotifier(cfg, prom, ready, a)

	cipher, err := security.NewXChaChaCipher(cfg.VaultSecret, cfg.VaultSalt)
	if err != nil {
		return err
	}

	authSvc := authflow.NewService(authflow.Deps{
		Users:    users,
		Hasher:   security.NewBcryptHasher(bcrypt.DefaultCost),
		Codec:    auth.NewTokenCodec(cfg.JWTSecret),
		Sessions: auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Notifier: notifier,
		Metrics:  prom,
	}, authflow.Options{
		ConfirmTokenTTL: cfg.ConfirmTokenTTL,
		ConfirmURLBase:  cfg.ConfirmURLBase,
	})

	// set up routers
	router := httpx.NewRouter(httpx.RouterDeps{
		Env:         cfg.Env,
		ServiceName: serviceName,
		Tracing:     tracing,
		Auth:        authSvc,
		Vault:       vaultflow.NewService(entries, cipher),
		Cookie: handlers.SessionCookie{
			TTL:    cfg.CookieTTL(),
			Secure: cfg.Env == "prod",
		},
		CORSOrigins: cfg.CORSAllowedOrigins,
		Prom:        prom,
		Gatherer:    reg,
		Ready:       ready,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "notifier", cfg.Notifier)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-stop:
	}
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}

	return nil
}

func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, ready map[string]handlers.Pinger, a *app) (authflow.AccountStore, vaultflow.Store, error) {
	if cfg.Store == "memory" {
		slog.Default().Warn("using in-memory stores; data is lost on restart")
		return memory.NewUsersRepo(), memory.NewVaultRepo(), nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	a.onClose(pool.Close)

	if err := db.Migrate(ctx, pool); err != nil {
		return nil, nil, err
	}

	ready["db"] = pool.Ping

	return postgres.NewUsersRepo(pool, prom), postgres.NewVaultRepo(pool, prom), nil
}

// buildNotifier picks the mail transport and wraps it with the timeout and
// circuit breaker signup relies on.
func buildNotifier(cfg config.Config, prom *observability.Prom, ready map[string]handlers.Pinger, a *app) notifications.Notifier {
	var inner notifications.Notifier

	switch cfg.Notifier {
	case "queue":
		redisCfg := redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}

		client := asynq.NewClient(redisCfg.AsynqOpt())
		a.onClose(func() { _ = client.Close() })

		rc := redisclient.New(redisCfg)
		a.onClose(func() { _ = rc.Close() })
		ready["redis"] = rc.Ping

		inner = notifications.NewQueueNotifier(client)
	default:
		inner = notifications.NewLogNotifierFromEnv()
	}

	return notifications.NewProtectedNotifier(inner, notifications.ProtectedNotifierConfig{
		Timeout:  cfg.NotifierTimeout,
		OnResult: prom.NotifierDelivery,
	})
}
