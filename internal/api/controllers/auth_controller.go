package controllers

import (
	"errors"

	"github.com/curaious/teamboard/internal/api/authenticator"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/services/user"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

type LoginResponse struct {
	*authenticator.Tokens
	User *user.User `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func unauthorized(message string, err error) error {
	return perrors.New(perrors.ErrCodeUnauthorized, message, err)
}

func RegisterAuthRoutes(r *router.Router, svc *services.Services, auth *authenticator.Authenticator) {
	issue := func(ctx *fasthttp.RequestCtx, u *user.User, message string) {
		stdCtx := requestContext(ctx)

		tokens, err := auth.IssueTokens(u.ID, u.Email)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to generate token", err)
			return
		}

		var cookie fasthttp.Cookie
		cookie.SetKey("access_token")
		cookie.SetValue(tokens.AccessToken)
		cookie.SetPath("/")
		cookie.SetHTTPOnly(true)
		cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
		cookie.SetExpire(tokens.ExpiresAt)
		ctx.Response.Header.SetCookie(&cookie)

		writeOK(ctx, stdCtx, message, LoginResponse{Tokens: tokens, User: u})
	}

	// Register a new user
	r.POST("/api/auth/sign-up", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var body user.SignUpRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		created, err := svc.User.Create(stdCtx, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to sign up", err)
			return
		}

		issue(ctx, created, "Signed up successfully")
	})

	// Login with email/password
	r.POST("/api/auth/sign-in", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var body user.SignInRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		u, err := svc.User.Authenticate(stdCtx, body.Email, body.Password)
		if err != nil {
			if errors.Is(err, user.ErrInvalidCredentials) {
				writeError(ctx, stdCtx, "Invalid credentials", unauthorized("Invalid credentials", err))
				return
			}
			writeError(ctx, stdCtx, "Failed to sign in", err)
			return
		}

		issue(ctx, u, "Signed in successfully")
	})

	// Trade a refresh token for a new pair. The user must still exist.
	r.POST("/api/auth/refresh", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var body RefreshRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid refresh token", unauthorized("Invalid refresh token", err))
			return
		}

		claimed, err := auth.VerifyRefreshToken(body.RefreshToken)
		if err != nil {
			writeError(ctx, stdCtx, "Invalid refresh token", unauthorized("Invalid refresh token", err))
			return
		}

		u, err := svc.User.GetByID(stdCtx, claimed.UserID)
		if err != nil {
			if errors.Is(err, perrors.ErrNotFound) {
				writeError(ctx, stdCtx, "Invalid refresh token", unauthorized("Invalid refresh token", err))
				return
			}
			writeError(ctx, stdCtx, "Failed to refresh token", err)
			return
		}

		issue(ctx, u, "Token refreshed successfully")
	})

	r.POST("/api/auth/logout", func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.DelClientCookie("access_token")
		writeOK(ctx, requestContext(ctx), "Logged out successfully", nil)
	})
}
