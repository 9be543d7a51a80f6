package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/curaious/teamboard/internal/perrors"
)

// Response is the envelope of every API reply.
type Response[T any] struct {
	ctx          context.Context
	ErrorDetails *perrors.Err `json:"errorDetails,omitempty"`
	Error        bool         `json:"error"`
	Message      string       `json:"message"`
	Data         T            `json:"data"`
	Status       int          `json:"status"`
	TraceID      string       `json:"traceId,omitempty"`
}

func NewResponse[T any](ctx context.Context, msg string, data T) *Response[T] {
	r := &Response[T]{
		ctx:     ctx,
		Message: msg,
		Data:    data,
		Status:  http.StatusOK,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		r.TraceID = sc.TraceID().String()
	}

	return r
}

// WithError marks the response as failed. The status comes from the perrors.Err in err's
// chain, anything else is an internal error.
func (r *Response[T]) WithError(err error) *Response[T] {
	var perr perrors.Err
	if !errors.As(err, &perr) {
		perr = perrors.NewErrInternalServerError(r.Message, err).(perrors.Err)
	}

	r.Status = perr.HttpStatus()
	r.ErrorDetails = &perr
	r.Error = true

	return r
}

// WithStatus will set the HTTP response status code.
//
// Prefer a perrors.Err carrying the code; the default is http.StatusOK.
func (r *Response[T]) WithStatus(code int) *Response[T] {
	r.Status = code

	return r
}

// Write encodes the response as JSON into the fasthttp context.
func (r *Response[T]) Write(ctx *fasthttp.RequestCtx) {
	if r.ErrorDetails != nil {
		if r.Status >= http.StatusInternalServerError {
			r.ErrorDetails.Print(r.ctx)
		} else {
			slog.WarnContext(r.ctx, r.Message, slog.Int("status", r.Status), slog.String("error", r.ErrorDetails.Error()))
		}
	}

	ctx.Response.Header.Set("content-type", "application/json")
	ctx.SetStatusCode(r.Status)

	body, err := json.Marshal(r)
	if err != nil {
		slog.ErrorContext(r.ctx, "Unable to json encode response", slog.Any("error", err))
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.SetBody(body)
}
