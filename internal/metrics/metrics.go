package metrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Checks - именованные проверки готовности для /readyz.
type Checks map[string]func() bool

// failing returns the names of checks that are down, sorted.
func (c Checks) failing() []string {
	var down []string
	for name, ok := range c {
		if ok != nil && !ok() {
			down = append(down, name)
		}
	}
	sort.Strings(down)
	return down
}

// Handler serves /healthz, /readyz and /metrics. A nil gatherer means the default registry.
func Handler(g prometheus.Gatherer, checks Checks) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if down := checks.failing(); len(down) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready: " + strings.Join(down, ",")))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	if g == nil {
		mux.Handle("/metrics", promhttp.Handler())
		return mux
	}
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	return mux
}

// Serve runs Handler on addr until ctx is done. Empty addr disables it.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, checks Checks, log *zap.Logger) {
	if addr == "" {
		log.Info("metrics disabled: empty addr")
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g, checks),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		log.Info("metrics server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn("metrics server shutdown error", zap.Error(err))
		}
	})
}
