// Package gateway exposes the marketplace over HTTP and streams change
// notifications to clients as server-sent events.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/example/tradeflow/internal/config"
)

type Server struct {
	cfg    config.GatewayConfig
	svc    Services
	logger *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	cancel     context.CancelFunc
}

func New(cfg config.GatewayConfig, svc Services, logger *slog.Logger) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	if cfg.Port <= 0 {
		cfg.Port = 8787
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Host = host
	return &Server{cfg: cfg, svc: svc, logger: logger}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           NewHandler(s.cfg.Token, s.svc, s.logger),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("gateway listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown ends open event streams and drains the remaining requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.httpServer, s.cancel
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	cancel()
	return srv.Shutdown(ctx)
}
