package httpt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ups-tracking/ups-api/pkg/logger"
)

const _defaultShutdownTimeout = 5 * time.Second

// ServerConfig is shared by the API and metrics listeners.
type ServerConfig struct {
	Addr              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type Server struct {
	name            string
	srv             *http.Server
	shutdownTimeout time.Duration
	log             logger.Logger
}

func NewServer(name string, handler http.Handler, cfg ServerConfig, log logger.Logger) *Server {
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = _defaultShutdownTimeout
	}

	return &Server{
		name: name,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		shutdownTimeout: shutdown,
		log:             log,
	}
}

// Run binds the listener and serves until ctx is done, then drains in-flight
// requests for at most the shutdown timeout. A bind failure is returned
// before anything is served.
func (s *Server) Run(ctx context.Context) error {
	const op = "transport.http.Server.Run"

	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("%s: %s: listen %s: %w", op, s.name, s.srv.Addr, err)
	}
	s.log.Infow("HTTP server listening", "server", s.name, "addr", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- s.srv.Serve(ln) }()

	select {
	case err = <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: %s: serve: %w", op, s.name, err)
	case <-ctx.Done():
	}

	s.log.Infow("HTTP server draining", "server", s.name, "timeout", s.shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err = s.srv.Shutdown(shutdownCtx); err != nil {
		_ = s.srv.Close()
		return fmt.Errorf("%s: %s: shutdown: %w", op, s.name, err)
	}

	s.log.Infow("HTTP server stopped", "server", s.name)
	return nil
}
