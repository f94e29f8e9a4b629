package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/vaulthub/internal/config"
	"github.com/geocoder89/vaulthub/internal/notifications"
	"github.com/geocoder89/vaulthub/internal/observability"
	"github.com/geocoder89/vaulthub/internal/queue/redisclient"
	"github.com/geocoder89/vaulthub/internal/worker"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	redisCfg := redisclient.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	rc := redisclient.New(redisCfg)
	defer rc.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	prom := observability.NewProm(reg)

	// the queue already retries, so the breaker only guards the SMTP relay
	mailer := notifications.NewProtectedNotifier(
		notifications.NewMailNotifier(cfg.SMTPAddr, cfg.MailFrom),
		notifications.ProtectedNotifierConfig{
			Timeout:  10 * time.Second,
			OnResult: prom.NotifierDelivery,
		},
	)

	srv := asynq.NewServer(redisCfg.AsynqOpt(), asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			notifications.MailQueue: 1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "mail_task_failed", "type", task.Type(), "err", err)
		}),
		ShutdownTimeout: 10 * time.Second,
	})

	mux := notifications.NewMailServeMux(notifications.NewMailTaskHandler(mailer))

	if err := srv.Start(mux); err != nil {
		log.Error("worker start failed", "err", err)
		os.Exit(1)
	}

	probes := worker.NewProbes(rc, reg)
	probeSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerProbePort),
		Handler:           probes.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := probeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("probe server failed", "err", err)
		}
	}()

	log.Info("worker has started", "queue", notifications.MailQueue, "probe_port", cfg.WorkerProbePort)

	<-ctx.Done()

	probes.MarkShuttingDown()
	srv.Shutdown()

	shutdownCtx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = probeSrv.Shutdown(shutdownCtx)

	log.Info("worker shutdown complete")
}
