package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	spatialerrors "github.com/arkilian/spatialbench/internal/errors"
	"github.com/arkilian/spatialbench/internal/logging"
)

// Status is the body of the /health endpoint.
type Status struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	Phase  string `json:"phase,omitempty"`
}

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. ":9090" or "127.0.0.1:0"
	Addr string

	// Gatherer provides the metrics served on /metrics
	Gatherer prometheus.Gatherer

	// Status reports the run the process is executing; may be nil
	Status func() Status

	Shutdown ShutdownConfig
	Logger   *zap.Logger
}

// Server serves /metrics and /health for the lifetime of a run.
type Server struct {
	opts     Options
	http     *http.Server
	listener net.Listener
	gate     *gate
	logger   *zap.Logger
	errCh    chan error

	stopOnce sync.Once
	stopErr  error
}

// New creates a server. Call Start to begin listening.
func New(opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	opts.Shutdown = opts.Shutdown.withDefaults()

	s := &Server{
		opts:   opts,
		gate:   &gate{},
		logger: logging.OrNop(opts.Logger).Named("server"),
		errCh:  make(chan error, 1),
	}
	s.http = &http.Server{
		Handler:           s.gate.wrap(s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routes without the shutdown middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Status{Status: "ok"}
	if s.opts.Status != nil {
		status = s.opts.Status()
		if status.Status == "" {
			status.Status = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return spatialerrors.NewInternalError("failed to listen on "+s.opts.Addr, err)
	}
	s.listener = ln

	go func() {
		err := s.http.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", zap.Error(err))
			s.errCh <- err
		}
		close(s.errCh)
	}()

	s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Err is closed when the server stops and carries a serve failure, if any.
func (s *Server) Err() <-chan error { return s.errCh }

// Shutdown rejects new requests, waits for in-flight scrapes and stops the
// server. Only the first call does any work; later calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, s.opts.Shutdown.Timeout)
		defer cancel()
		drainCtx, cancelDrain := context.WithTimeout(ctx, s.opts.Shutdown.Drain)
		defer cancelDrain()

		select {
		case <-s.gate.close():
		case <-drainCtx.Done():
			s.stopErr = fmt.Errorf("timeout waiting for %d in-flight requests", s.gate.inFlight())
			s.logger.Warn("shutdown drain timed out", zap.Error(s.stopErr))
		}
		if err := s.http.Shutdown(ctx); err != nil && s.stopErr == nil {
			s.stopErr = err
		}
	})
	return s.stopErr
}
