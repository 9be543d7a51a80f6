package access

import (
	"context"
	"errors"
	"slices"

	"github.com/curaious/teamboard/internal/perrors"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Lookup reads the current state the resolver decides on. Implementations must read through
// to the store; authorization is never served from a cache.
type Lookup interface {
	ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error)
	TaskProject(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error)
	InvitationProject(ctx context.Context, invitationID uuid.UUID) (uuid.UUID, error)
	Membership(ctx context.Context, userID, projectID uuid.UUID) (*membership.Membership, error)
}

var (
	ErrProjectNotFound    = perrors.NotFound("project not found")
	ErrTaskNotFound       = perrors.NotFound("task not found")
	ErrInvitationNotFound = perrors.NotFound("invitation not found")
	ErrUnauthenticated    = perrors.Forbidden("unauthorized")
	ErrInsufficientRights = perrors.Forbidden("insufficient rights")
)

// Resolver decides whether an identity may call a route on a resource.
type Resolver struct {
	lookup Lookup
	routes RouteTable
	tracer trace.Tracer
}

func NewResolver(lookup Lookup, routes RouteTable) *Resolver {
	return &Resolver{
		lookup: lookup,
		routes: routes,
		tracer: otel.Tracer("teamboard/access"),
	}
}

// Authorize returns nil when identity may call route on ref. It has no side effects besides
// the lookups it performs.
func (r *Resolver) Authorize(ctx context.Context, identity *Identity, route RouteID, ref ResourceRef) (err error) {
	ctx, span := r.tracer.Start(ctx, "access.authorize", trace.WithAttributes(
		attribute.String("access.route", string(route)),
		attribute.String("access.resource", ref.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "denied")
		}
		span.End()
	}()

	required := r.routes.Roles(route)
	if len(required) == 0 {
		return nil
	}

	projectID, err := r.resolveProject(ctx, ref)
	if err != nil {
		return err
	}

	if identity == nil || identity.UserID == uuid.Nil {
		return ErrUnauthenticated
	}

	m, err := r.lookup.Membership(ctx, identity.UserID, projectID)
	if err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return ErrInsufficientRights
		}
		return err
	}

	if m.Status != membership.StatusAccepted || !slices.Contains(required, m.Role) {
		return ErrInsufficientRights
	}

	return nil
}

// resolveProject dereferences ref to the project it belongs to and checks that it exists.
func (r *Resolver) resolveProject(ctx context.Context, ref ResourceRef) (uuid.UUID, error) {
	if err := ref.validate(); err != nil {
		return uuid.Nil, err
	}

	projectID := ref.id

	switch ref.kind {
	case refTask:
		id, err := r.lookup.TaskProject(ctx, ref.id)
		if err != nil {
			return uuid.Nil, notFoundAs(err, ErrTaskNotFound)
		}
		projectID = id
	case refInvitation:
		id, err := r.lookup.InvitationProject(ctx, ref.id)
		if err != nil {
			return uuid.Nil, notFoundAs(err, ErrInvitationNotFound)
		}
		projectID = id
	}

	exists, err := r.lookup.ProjectExists(ctx, projectID)
	if err != nil {
		return uuid.Nil, err
	}
	if !exists {
		return uuid.Nil, ErrProjectNotFound
	}

	return projectID, nil
}

func notFoundAs(err, target error) error {
	if errors.Is(err, perrors.ErrNotFound) {
		return target
	}
	return err
}
