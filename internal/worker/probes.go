package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReadinessDeps interface {
	Ping(ctx context.Context) error
}

// Probes serves liveness, readiness and metrics for the mail worker.
type Probes struct {
	deps         ReadinessDeps
	gatherer     prometheus.Gatherer
	shuttingDown atomic.Bool
}

func NewProbes(deps ReadinessDeps, gatherer prometheus.Gatherer) *Probes {
	return &Probes{deps: deps, gatherer: gatherer}
}

// MarkShuttingDown flips /readyz to 503 so the orchestrator stops routing.
func (p *Probes) MarkShuttingDown() {
	p.shuttingDown.Store(true)
}

func (p *Probes) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if p.shuttingDown.Load() {
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := p.deps.Ping(ctx); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if p.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}
