// Package metrics exposes campaign and quality monitoring figures as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/felixgeelhaar/sweep/internal/log"
)

var (
	// Default is the process-wide instance registered with the default
	// Prometheus registry
	Default *Metrics
	once    sync.Once
)

// InitDefault registers the default metrics instance on first use
func InitDefault() *Metrics {
	once.Do(func() {
		Default = NewMetrics(prometheus.DefaultRegisterer)
	})
	return Default
}

// NewRegistry creates an isolated registry with its own metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	return reg, NewMetrics(reg)
}

// Server serves a registry on /metrics
type Server struct {
	srv    *http.Server
	addr   net.Addr
	logger *log.Logger
}

// Serve starts an HTTP server for gatherer on addr. A nil gatherer serves
// the default registry.
func Serve(addr string, gatherer prometheus.Gatherer, logger *log.Logger) (*Server, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s := &Server{
		srv:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		addr:   ln.Addr(),
		logger: logger,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", s.Addr())
	return s, nil
}

// Addr returns the listening address
func (s *Server) Addr() string {
	return s.addr.String()
}

// Close stops the server, waiting for in-flight scrapes until ctx is done
func (s *Server) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// reset clears the default instance for tests
func reset() {
	Default = nil
	once = sync.Once{}
}
