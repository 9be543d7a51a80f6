package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*access.Identity, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, identity *access.Identity, route access.RouteID, ref access.ResourceRef) error
}

// EventSource delivers committed mutations published by API instances.
type EventSource interface {
	Subscribe(ctx context.Context, handler func(notify.Event)) error
}

// Server accepts websocket connections and relays events to project rooms.
type Server struct {
	srv        *http.Server
	hub        *Hub
	verifier   TokenVerifier
	authorizer Authorizer
	events     EventSource
	origins    []string
	upgrader   websocket.Upgrader

	// ctx lives as long as the server; client reads run under it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer builds the realtime server. events may be nil, in which case nothing is relayed.
func NewServer(addr string, allowedOrigins []string, verifier TokenVerifier, authorizer Authorizer, events EventSource) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		hub:        NewHub(),
		verifier:   verifier,
		authorizer: authorizer,
		events:     events,
		origins:    allowedOrigins,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.serveWS).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return otelhttp.NewHandler(c.Handler(r), "realtime")
}

// Start subscribes to events and serves in the background.
func (s *Server) Start() error {
	if s.events != nil {
		if err := s.events.Subscribe(s.ctx, s.hub.Publish); err != nil {
			return err
		}
	} else {
		slog.Warn("No event source configured, realtime server will not relay events")
	}

	slog.Info("Starting realtime server...", slog.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Realtime server stopped", slog.Any("error", err))
		}
	}()

	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	slog.Info("Gracefully shutting down realtime server...")
	s.cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		slog.Error("Failed to shutdown the realtime server", slog.Any("error", err))
	}
	// Hijacked websocket connections are not tracked by http.Server.
	s.hub.Close()
	slog.Info("Realtime server shutdown!")
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.VerifyAccessToken(requestToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := newClient(s.hub, conn, identity)
	s.hub.Join(UserRoom(identity.UserID), c)

	go c.writePump()
	go c.readPump(s.ctx, s.authorizer)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

// requestToken reads the access token from the query, the Authorization header or the
// access_token cookie. Browsers cannot set headers on websocket requests.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}
