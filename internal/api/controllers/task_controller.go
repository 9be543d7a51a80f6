package controllers

import (
	"context"

	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

func RegisterTaskRoutes(r *router.Router, svc *services.Services) {
	// taskRoute parses {id}, authorizes route on it and writes the result of op.
	taskRoute := func(route access.RouteID, message string, op func(ctx *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error)) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			stdCtx := requestContext(ctx)
			id, err := pathParamUUID(ctx, "id")
			if err != nil {
				writeInvalidRequest(ctx, stdCtx, "Invalid ID format", err)
				return
			}

			caller, ok := authorize(ctx, stdCtx, svc.Resolver, route, access.Task(id))
			if !ok {
				return
			}

			result, err := op(ctx, stdCtx, caller.UserID, id)
			if err != nil {
				writeError(ctx, stdCtx, "Failed to process task", err)
				return
			}

			writeOK(ctx, stdCtx, message, result)
		}
	}

	// Tasks assigned to the caller
	r.GET("/api/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authenticated(ctx, stdCtx)
		if !ok {
			return
		}

		tasks, err := svc.Task.UserTasks(stdCtx, caller.UserID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list tasks", err)
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", tasks)
	})

	r.GET("/api/tasks/{id}", taskRoute(access.RouteTaskGet, "Task retrieved successfully",
		func(_ *fasthttp.RequestCtx, stdCtx context.Context, _, id uuid.UUID) (any, error) {
			return svc.Task.Get(stdCtx, id)
		}))

	r.PUT("/api/tasks/{id}", taskRoute(access.RouteTaskUpdate, "Task updated successfully",
		func(ctx *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			var body task.UpdateTaskRequest
			if err := parseBody(ctx, &body); err != nil {
				return nil, invalidBody(err)
			}
			return svc.Task.Update(stdCtx, actor, id, &body)
		}))

	r.DELETE("/api/tasks/{id}", taskRoute(access.RouteTaskDelete, "Task deleted successfully",
		func(_ *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			return svc.Task.Delete(stdCtx, actor, id)
		}))

	r.PUT("/api/tasks/{id}/status", taskRoute(access.RouteTaskStatus, "Task status updated successfully",
		func(ctx *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			var body task.UpdateStatusRequest
			if err := parseBody(ctx, &body); err != nil {
				return nil, invalidBody(err)
			}
			return svc.Task.UpdateStatus(stdCtx, actor, id, body.Status)
		}))

	r.PUT("/api/tasks/{id}/priority", taskRoute(access.RouteTaskPriority, "Task priority updated successfully",
		func(ctx *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			var body task.UpdatePriorityRequest
			if err := parseBody(ctx, &body); err != nil {
				return nil, invalidBody(err)
			}
			return svc.Task.UpdatePriority(stdCtx, actor, id, body.Priority)
		}))

	r.PUT("/api/tasks/{id}/assign", taskRoute(access.RouteTaskAssign, "Task assigned successfully",
		func(ctx *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			var body task.AssignRequest
			if err := parseBody(ctx, &body); err != nil {
				return nil, invalidBody(err)
			}
			return svc.Task.Assign(stdCtx, actor, id, body.UserID)
		}))

	r.PUT("/api/tasks/{id}/archive", taskRoute(access.RouteTaskArchive, "Task archived successfully",
		func(_ *fasthttp.RequestCtx, stdCtx context.Context, actor, id uuid.UUID) (any, error) {
			return svc.Task.Archive(stdCtx, actor, id)
		}))
}
