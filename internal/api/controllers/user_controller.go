package controllers

import (
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/services/user"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func RegisterUserRoutes(r *router.Router, svc *services.Services) {
	// Current user
	r.GET("/api/users/profile", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authenticated(ctx, stdCtx)
		if !ok {
			return
		}

		u, err := svc.User.GetByID(stdCtx, caller.UserID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get profile", err)
			return
		}

		writeOK(ctx, stdCtx, "Profile retrieved successfully", u)
	})

	r.PATCH("/api/users/profile", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authenticated(ctx, stdCtx)
		if !ok {
			return
		}

		var body user.UpdateUserRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		updated, err := svc.User.Update(stdCtx, caller.UserID, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to update profile", err)
			return
		}

		writeOK(ctx, stdCtx, "Profile updated successfully", updated)
	})

	r.DELETE("/api/users/profile", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authenticated(ctx, stdCtx)
		if !ok {
			return
		}

		if err := svc.User.Delete(stdCtx, caller.UserID); err != nil {
			writeError(ctx, stdCtx, "Failed to delete profile", err)
			return
		}

		writeOK(ctx, stdCtx, "Profile deleted successfully", nil)
	})

	// Search users
	r.GET("/api/users", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		if _, ok := authenticated(ctx, stdCtx); !ok {
			return
		}

		take, err := queryInt(ctx, "take", 10)
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid take", err)
			return
		}
		skip, err := queryInt(ctx, "skip", 0)
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid skip", err)
			return
		}

		users, err := svc.User.Search(stdCtx, string(ctx.QueryArgs().Peek("query")), take, skip)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to search users", err)
			return
		}

		writeOK(ctx, stdCtx, "Users retrieved successfully", users)
	})

	r.GET("/api/users/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		if _, ok := authenticated(ctx, stdCtx); !ok {
			return
		}

		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid ID format", err)
			return
		}

		u, err := svc.User.GetByID(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get user", err)
			return
		}

		writeOK(ctx, stdCtx, "User retrieved successfully", u)
	})
}
