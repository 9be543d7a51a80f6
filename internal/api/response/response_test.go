package response

import (
	"context"
	"errors"
	"net/http"
	"testing"

	json "github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/curaious/teamboard/internal/perrors"
)

func decode(t *testing.T, ctx *fasthttp.RequestCtx) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))
	return body
}

func TestResponse_OK(t *testing.T) {
	var ctx fasthttp.RequestCtx

	NewResponse(context.Background(), "Project fetched", map[string]string{"name": "alpha"}).Write(&ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	body := decode(t, &ctx)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, map[string]any{"name": "alpha"}, body["data"])
	assert.NotContains(t, body, "errorDetails")
	assert.NotContains(t, body, "traceId")
}

func TestResponse_DomainError(t *testing.T) {
	var ctx fasthttp.RequestCtx

	err := perrors.FromError("Unable to get project", perrors.NotFound("project not found"))
	NewResponse[any](context.Background(), "Unable to get project", nil).WithError(err).Write(&ctx)

	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())

	body := decode(t, &ctx)
	assert.Equal(t, true, body["error"])
	details, ok := body["errorDetails"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "project not found", details["error"])
}

func TestResponse_UnknownErrorIsInternal(t *testing.T) {
	var ctx fasthttp.RequestCtx

	NewResponse[any](context.Background(), "Unable to list tasks", nil).WithError(errors.New("connection reset")).Write(&ctx)

	assert.Equal(t, http.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestResponse_CarriesTraceID(t *testing.T) {
	var ctx fasthttp.RequestCtx

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	NewResponse[any](trace.ContextWithSpanContext(context.Background(), sc), "ok", nil).Write(&ctx)

	assert.Equal(t, traceID.String(), decode(t, &ctx)["traceId"])
}
