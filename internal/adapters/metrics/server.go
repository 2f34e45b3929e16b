package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stellarforge/fleetd/internal/infrastructure/config"
)

// Server exposes the Prometheus registry over HTTP.
type Server struct {
	httpServer *http.Server
}

// NewServer builds the metrics HTTP server. Returns nil when metrics are
// disabled or the registry was never initialized.
func NewServer(cfg *config.MetricsConfig) *Server {
	if !cfg.Enabled || Registry == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves until the listener closes. Blocks; run in a goroutine.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
