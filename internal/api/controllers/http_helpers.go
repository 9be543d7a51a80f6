package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	json "github.com/bytedance/sonic"
	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/api/response"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// User value keys set by the API middlewares.
const (
	TraceContextKey = "traceCtx"
	IdentityKey     = "identity"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestContext returns the context carrying the propagated trace, or Background when the
// middleware did not set one.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	if traceCtx, ok := ctx.UserValue(TraceContextKey).(context.Context); ok {
		return traceCtx
	}
	return context.Background()
}

// parseBody decodes the JSON body into target and validates it.
func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}

	if err := json.Unmarshal(body, target); err != nil {
		return err
	}

	return validate.Struct(target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	response.NewResponse[any](stdCtx, message, nil).WithError(perrors.FromError(message, err)).Write(ctx)
}

func writeInvalidRequest(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	writeError(ctx, stdCtx, message, perrors.NewErrInvalidRequest(message, err))
}

func writeOK(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, data any) {
	response.NewResponse(stdCtx, message, data).Write(ctx)
}

func pathParam(ctx *fasthttp.RequestCtx, key string) (string, error) {
	val := ctx.UserValue(key)
	if val == nil {
		return "", fmt.Errorf("%s is required", key)
	}

	return fmt.Sprint(val), nil
}

func pathParamUUID(ctx *fasthttp.RequestCtx, key string) (uuid.UUID, error) {
	val, err := pathParam(ctx, key)
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(val)
}

func queryInt(ctx *fasthttp.RequestCtx, key string, defaultValue int) (int, error) {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return defaultValue, nil
	}

	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// identity returns the caller set by the auth middleware, or nil.
func identity(ctx *fasthttp.RequestCtx) *access.Identity {
	id, _ := ctx.UserValue(IdentityKey).(*access.Identity)
	return id
}

// authorize runs the resolver for route on ref and writes the denial when there is one. It
// returns the caller on success.
func authorize(ctx *fasthttp.RequestCtx, stdCtx context.Context, resolver *access.Resolver, route access.RouteID, ref access.ResourceRef) (*access.Identity, bool) {
	caller := identity(ctx)
	if err := resolver.Authorize(stdCtx, caller, route, ref); err != nil {
		writeError(ctx, stdCtx, "Access denied", err)
		return nil, false
	}

	if caller == nil {
		writeError(ctx, stdCtx, "Access denied", access.ErrUnauthenticated)
		return nil, false
	}

	return caller, true
}

// authenticated returns the caller, or writes an unauthorized response when there is none.
func authenticated(ctx *fasthttp.RequestCtx, stdCtx context.Context) (*access.Identity, bool) {
	caller := identity(ctx)
	if caller == nil {
		writeError(ctx, stdCtx, "Unauthorized", perrors.New(perrors.ErrCodeUnauthorized, "Unauthorized", access.ErrUnauthenticated))
		return nil, false
	}
	return caller, true
}

func invalidBody(err error) error {
	return perrors.NewErrInvalidRequest("Invalid request body", err)
}
