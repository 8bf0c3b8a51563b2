// Package api exposes the agent's local HTTP surface: clip library CRUD,
// transport controls for the sequence player, preview thumbnails, exports,
// and a websocket position feed. The server binds to loopback only.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/player"
	"github.com/cutroom/cutroom-agent/internal/preview"
	"github.com/cutroom/cutroom-agent/internal/stream"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Library    *library.Service
	Repository library.Repository
	Player     *player.Player
	Preview    *preview.Pipeline
	Stream     *stream.Server
	Exporter   *export.Runner
	Hub        *Hub
	Logger     *slog.Logger
	StartTime  time.Time
	DeviceID   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
