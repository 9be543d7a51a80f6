package controllers

import (
	"github.com/curaious/teamboard/internal/access"
	"github.com/curaious/teamboard/internal/services"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

func RegisterInvitationRoutes(r *router.Router, svc *services.Services) {
	// Invitations addressed to the caller
	r.GET("/api/invitations", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		caller, ok := authenticated(ctx, stdCtx)
		if !ok {
			return
		}

		invitations, err := svc.Membership.ListUserInvitations(stdCtx, caller.UserID)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to list invitations", err)
			return
		}

		writeOK(ctx, stdCtx, "Invitations retrieved successfully", invitations)
	})

	r.GET("/api/invitations/{invitationId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "invitationId")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid invitation ID format", err)
			return
		}

		caller, ok := authorize(ctx, stdCtx, svc.Resolver, access.RouteInvitationGet, access.Invitation(id))
		if !ok {
			return
		}

		invitation, err := svc.Membership.GetInvitation(stdCtx, caller.UserID, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to get invitation", err)
			return
		}

		writeOK(ctx, stdCtx, "Invitation retrieved successfully", invitation)
	})

	// Accept or reject
	r.PUT("/api/invitations/{invitationId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "invitationId")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid invitation ID format", err)
			return
		}

		caller, ok := authorize(ctx, stdCtx, svc.Resolver, access.RouteInvitationRespond, access.Invitation(id))
		if !ok {
			return
		}

		var body membership.RespondRequest
		if err := parseBody(ctx, &body); err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid request body", err)
			return
		}

		m, err := svc.Membership.Respond(stdCtx, caller.UserID, id, body.Status)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to respond to invitation", err)
			return
		}

		writeOK(ctx, stdCtx, "Invitation updated successfully", m)
	})

	// Revoke, gated on the project the invitation belongs to
	r.DELETE("/api/projects/{id}/invitations/{invitationId}", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		id, err := pathParamUUID(ctx, "invitationId")
		if err != nil {
			writeInvalidRequest(ctx, stdCtx, "Invalid invitation ID format", err)
			return
		}

		caller, ok := authorize(ctx, stdCtx, svc.Resolver, access.RouteInvitationRevoke, access.Invitation(id))
		if !ok {
			return
		}

		revoked, err := svc.Membership.Revoke(stdCtx, caller.UserID, id)
		if err != nil {
			writeError(ctx, stdCtx, "Failed to revoke invitation", err)
			return
		}

		writeOK(ctx, stdCtx, "Invitation revoked successfully", revoked)
	})
}
