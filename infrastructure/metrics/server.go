package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

// Server exports Metrics over HTTP at /metrics
type Server struct {
	httpServer *http.Server
	listener   net.Listener
}

// NewServer binds listen and returns a server exporting m
func NewServer(listen string, m *Metrics) (*Server, error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot listen on %s", listen)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}, nil
}

// Address returns the address the server listens on
func (s *Server) Address() string {
	return s.listener.Addr().String()
}

// Start serves in the background
func (s *Server) Start() {
	log.Infof("Prometheus exporter started on %s/metrics", s.Address())
	spawn("metrics.Server.Start", func() {
		err := s.httpServer.Serve(s.listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Prometheus exporter stopped: %s", err)
		}
	})
}

// Stop shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.WithStack(s.httpServer.Shutdown(ctx))
}
