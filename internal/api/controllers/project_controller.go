package controllers

import (
	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/curaious/teamboard/internal/services/project"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

func RegisterProjectRoutes(r *router.Router, svc *services.Services) {
	// projectRoute parses {id} and authorizes route on it.
	projectRoute := func(ctx *fasthttp.RequestCtx, route access.RouteID) (*access.Identity, uuid.UUID, bool) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "id")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid ID format", err)
			return nil, uuid.Nil, false
		}

		caller, ok := authorize(ctx, stdCtx, svc.Resolver, route, access.Project(id))
		if !ok {
			return nil, uuid.Nil, false
		}
		return caller, id, true
	}

	// Create project
	r.POST("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authorize(ctx, stdCtx, svc.Resolver, access.RouteProjectCreate, access.None)
		if !ok {
			return
		}

		var body project.CreateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		created, err := svc.Project.Create(stdCtx, caller.UserID, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project created successfully", created)
	})

	// List the caller's projects
	r.GET("/api/projects", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authorize(ctx, stdCtx, svc.Resolver, access.RouteProjectList, access.None)
		if !ok {
			return
		}

		projects, err := svc.Project.ListForUser(stdCtx, caller.UserID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list projects", err)
			return
		}

		writeOK(ctx, stdCtx, "Projects retrieved successfully", projects)
	})

	r.GET("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectGet)
		if !ok {
			return
		}

		detail, err := svc.Project.Get(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project retrieved successfully", detail)
	})

	r.PUT("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectUpdate)
		if !ok {
			return
		}

		var body project.UpdateProjectRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		updated, err := svc.Project.Update(stdCtx, caller.UserID, id, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to update project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project updated successfully", updated)
	})

	r.DELETE("/api/projects/{id}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectDelete)
		if !ok {
			return
		}

		if err := svc.Project.Delete(stdCtx, caller.UserID, id); err != nil {
			writeError(ctx, stdCtx, "Failed to delete project", err)
			return
		}

		writeOK(ctx, stdCtx, "Project deleted successfully", nil)
	})

	r.GET("/api/projects/{id}/activity-logs", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectActivity)
		if !ok {
			return
		}

		logs, err := svc.Activity.ListByProject(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list activity logs", err)
			return
		}

		writeOK(ctx, stdCtx, "Activity logs retrieved successfully", logs)
	})

	// Project tasks
	r.POST("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectTasksCreate)
		if !ok {
			return
		}

		var body task.CreateTaskRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		created, err := svc.Task.Create(stdCtx, caller.UserID, id, &body)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to create task", err)
			return
		}

		writeOK(ctx, stdCtx, "Task created successfully", created)
	})

	r.GET("/api/projects/{id}/tasks", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectTasksList)
		if !ok {
			return
		}

		summary, err := svc.Task.ProjectSummary(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list tasks", err)
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", summary)
	})

	r.GET("/api/projects/{id}/tasks/grouped", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectTasksGroup)
		if !ok {
			return
		}

		grouped, err := svc.Task.Grouped(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to group tasks", err)
			return
		}

		writeOK(ctx, stdCtx, "Tasks retrieved successfully", grouped)
	})

	// Members and invitations
	r.POST("/api/projects/{id}/invite", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectInvite)
		if !ok {
			return
		}

		var body membership.InviteRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		invitation, err := svc.Membership.Invite(stdCtx, caller.UserID, id, body.Email)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to invite user", err)
			return
		}

		writeOK(ctx, stdCtx, "User invited successfully", invitation)
	})

	r.GET("/api/projects/{id}/users", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectUsersList)
		if !ok {
			return
		}

		members, err := svc.Membership.ListMembers(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list users", err)
			return
		}

		writeOK(ctx, stdCtx, "Users retrieved successfully", members)
	})

	r.DELETE("/api/projects/{id}/users/{userId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectUsersRemove)
		if !ok {
			return
		}

		userID, err := pathParamUUID(ctx, "userId")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid user ID format", err)
			return
		}

		removed, err := svc.Membership.Remove(stdCtx, caller.UserID, id, userID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to remove user", err)
			return
		}

		writeOK(ctx, stdCtx, "User removed successfully", removed)
	})

	r.PUT("/api/projects/{id}/users/{userId}/role", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, id, ok := projectRoute(ctx, access.RouteProjectUsersRole)
		if !ok {
			return
		}

		userID, err := pathParamUUID(ctx, "userId")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid user ID format", err)
			return
		}

		var body membership.UpdateRoleRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		updated, err := svc.Membership.UpdateRole(stdCtx, caller.UserID, id, userID, body.Role)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to update role", err)
			return
		}

		writeOK(ctx, stdCtx, "Role updated successfully", updated)
	})

	r.GET("/api/projects/{id}/invitations", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		_, id, ok := projectRoute(ctx, access.RouteProjectInvitations)
		if !ok {
			return
		}

		invitations, err := svc.Membership.ListProjectInvitations(stdCtx, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list invitations", err)
			return
		}

		writeOK(ctx, stdCtx, "Invitations retrieved successfully", invitations)
	})
}
