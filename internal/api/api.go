package api

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/curaious/teamboard/internal/api/authenticator"
	"github.com/curaious/teamboard/internal/config"
	"github.com/curaious/teamboard/internal/migrations"
	"github.com/curaious/teamboard/internal/services"
	"github.com/valyala/fasthttp"
)

// Server is the REST server in front of *services.Services
type Server struct {
	srv            *fasthttp.Server
	addr           string
	services       *services.Services
	auth           *authenticator.Authenticator
	allowedOrigins []string
}

// New runs pending migrations and builds the server with its services.
func New(conf *config.Config, svc *services.Services) (*Server, error) {
	m, err := migrations.NewMigrator(svc.DB)
	if err != nil {
		return nil, err
	}

	if err := m.Up(context.Background(), 0); err != nil {
		return nil, err
	}

	auth, err := authenticator.New(conf)
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv:            &fasthttp.Server{Name: "teamboard"},
		addr:           conf.HTTP_ADDR,
		services:       svc,
		auth:           auth,
		allowedOrigins: strings.Split(conf.ALLOWED_ORIGINS, ","),
	}

	s.srv.Handler = s.initNewRoutes()

	return s, nil
}

// Start the rest server and block until an interrupt arrives. extra is shut down alongside.
func (s *Server) Start(extra ...func(context.Context)) {
	slog.Info("Starting REST server...", slog.String("addr", s.addr))
	go func() {
		if err := s.srv.ListenAndServe(s.addr); err != nil {
			slog.Error("Server shutdown", slog.Any("error", err))
		}
	}()
	slog.Info("REST server started!")

	// Listen for OS interrupts
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Block till we receive an interrupt
	<-c
	slog.Info("Received interrupt...")

	// Create a timeout
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	s.shutdown(ctx)
	for _, fn := range extra {
		fn(ctx)
	}
}

// Shutdown shuts down the rest server
func (s *Server) shutdown(ctx context.Context) {
	slog.Info("Gracefully shutting down REST server...")
	if err := s.srv.ShutdownWithContext(ctx); err != nil {
		slog.Error("Failed to shutdown the server", slog.Any("error", err))
	}
	slog.Info("REST server shutdown!")
}
