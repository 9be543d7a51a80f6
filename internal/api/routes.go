package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/curaious/teamboard/internal/api/authenticator"
	"github.com/curaious/teamboard/internal/api/controllers"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"
)

var tracePropagator = propagation.TraceContext{}

func (s *Server) initNewRoutes() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/api/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		_, _ = ctx.Write([]byte("OK"))
	})

	controllers.RegisterAuthRoutes(r, s.services, s.auth)
	controllers.RegisterUserRoutes(r, s.services)
	controllers.RegisterProjectRoutes(r, s.services)
	controllers.RegisterInvitationRoutes(r, s.services)
	controllers.RegisterTaskRoutes(r, s.services)

	return s.withMiddlewares(r.Handler, s.auth)
}

func (s *Server) withMiddlewares(next fasthttp.RequestHandler, auth *authenticator.Authenticator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		s.applyCORS(ctx)
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		start := time.Now()
		requestURI := string(ctx.URI().FullURI())
		slog.Info("Started processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI))

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h[string(k)] = []string{string(v)}
		})
		traceCtx := tracePropagator.Extract(ctx, propagation.HeaderCarrier(h))
		ctx.SetUserValue(controllers.TraceContextKey, traceCtx)

		// Routes decide for themselves whether they need a caller; an invalid token is
		// rejected outright. Auth routes never read the caller, so a stale token does not
		// block refreshing it.
		if accessToken := bearerToken(ctx); accessToken != "" && !isAuthRoute(ctx) {
			identity, err := auth.VerifyAccessToken(accessToken)
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}
			ctx.SetUserValue(controllers.IdentityKey, identity)
		}

		next(ctx)

		slog.Info("Finished processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI), slog.Int("status", ctx.Response.StatusCode()), slog.Duration("duration", time.Since(start)))
	}
}

func (s *Server) applyCORS(ctx *fasthttp.RequestCtx) {
	origin := string(ctx.Request.Header.Peek("Origin"))
	if !s.originAllowed(origin) {
		return
	}

	headers := &ctx.Response.Header
	headers.Set("Access-Control-Allow-Origin", origin)
	headers.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS,PATCH")
	headers.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,Traceparent")
	headers.Set("Access-Control-Allow-Credentials", "true")
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func isAuthRoute(ctx *fasthttp.RequestCtx) bool {
	return strings.HasPrefix(string(ctx.Path()), "/api/auth/")
}

func bearerToken(ctx *fasthttp.RequestCtx) string {
	if header := string(ctx.Request.Header.Peek("Authorization")); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return string(ctx.Request.Header.Cookie("access_token"))
}
