// Package admin is the read-only observability HTTP surface: liveness,
// Prometheus metrics, and OpenAPI docs. It is mounted on
// its own listener, separate from internal/frontend's binary TCP protocol,
// and never touches the engine's append/read hot path — it only ever reads
// the Host's liveness flag and the already-registered metrics.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"asynclogd/internal/engine"
)

// Config is the admin surface's configuration.
type Config struct {
	Address string
	DocsDir string
}

// DefaultConfig returns the admin surface's default configuration.
func DefaultConfig() Config {
	return Config{Address: ":9093", DocsDir: "./docs"}
}

// Server is the admin HTTP surface.
type Server struct {
	cfg      Config
	host     *engine.Host
	registry *prometheus.Registry
	srv      *http.Server
}

// New builds an admin Server reporting on host's liveness and exposing
// registry's metrics at /metrics.
func New(cfg Config, host *engine.Host, registry *prometheus.Registry) *Server {
	router := mux.NewRouter()
	s := &Server{cfg: cfg, host: host, registry: registry}

	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.PathPrefix("/docs/").Handler(httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	router.PathPrefix("/openapi.yaml").Handler(http.FileServer(http.Dir(cfg.DocsDir)))

	s.srv = &http.Server{Addr: cfg.Address, Handler: router}
	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.host == nil || s.host.Alive() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"status":"engine gone"}`))
}

// ListenAndServe runs the admin server until ctx is cancelled, then
// gracefully shuts it down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
