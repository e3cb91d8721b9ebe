package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motion-control/mcc/internal/auth"
)

// ServerConfig carries the HTTP timeouts.
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP API server.
type Server struct {
	log        *logrus.Entry
	fleet      FleetPort
	stream     StreamPort
	discover   DiscoverFunc
	authMW     *auth.Middleware
	cfg        ServerConfig
	startTime  time.Time
	httpServer *http.Server
}

// NewServer assembles the server from its ports. A nil stream disables
// the SSE endpoint; a nil discover falls back to an empty port list.
func NewServer(fleet FleetPort, stream StreamPort, discover DiscoverFunc, authMW *auth.Middleware, cfg ServerConfig, log *logrus.Logger) *Server {
	if authMW == nil {
		authMW = auth.NewMiddleware(nil)
	}
	return &Server{
		log:       log.WithField("component", "api"),
		fleet:     fleet,
		stream:    stream,
		discover:  discover,
		authMW:    authMW,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// Start blocks serving HTTP on addr until Stop or a listener error.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.log.WithField("addr", addr).Info("HTTP API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
