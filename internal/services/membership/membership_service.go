package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
)

var (
	ErrNoMembers     = perrors.NotFound("no users found")
	ErrNoInvitations = perrors.NotFound("no invitations found")
)

// MembershipService applies membership transitions and keeps the derived caches in step
type MembershipService struct {
	repo     Repository
	cache    *cache.Manager
	notifier notify.Notifier
}

// NewMembershipService constructs a new MembershipService
func NewMembershipService(repo Repository, cache *cache.Manager, notifier notify.Notifier) *MembershipService {
	return &MembershipService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
	}
}

// membershipKeys lists every cached view a change to m can affect.
func membershipKeys(m Membership) []string {
	pid, uid := m.ProjectID.String(), m.UserID.String()
	return cache.Keys{}.Add(
		cache.ProjectKey(pid),
		cache.UserProjectsKey(uid),
		cache.ProjectUsersKey(pid),
		cache.ProjectInvitationsKey(pid),
		cache.InvitationKey(m.ID.String()),
		cache.UserInvitationsKey(uid),
	)
}

// Invite creates a pending membership for the user registered under email.
func (s *MembershipService) Invite(ctx context.Context, actor, projectID uuid.UUID, email string) (*Membership, error) {
	userID, err := s.repo.UserIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUserProject(ctx, userID, projectID)
	if err != nil {
		if !errors.Is(err, ErrMembershipNotFound) {
			return nil, err
		}
		existing = nil
	}

	invitation, err := NewInvitation(userID, projectID, existing)
	if err != nil {
		return nil, err
	}

	created, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Membership, error) {
		return s.repo.Create(ctx, invitation)
	}, func(m *Membership) []string {
		pid := m.ProjectID.String()
		return cache.Keys{}.Add(cache.ProjectKey(pid), cache.ProjectInvitationsKey(pid), cache.UserInvitationsKey(m.UserID.String()))
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Event{
		ActorID:   actor,
		UserID:    created.UserID,
		ProjectID: created.ProjectID,
		Title:     fmt.Sprintf("User %s invited to project", email),
		Details:   fmt.Sprintf("User %s invited to project %s by %s", email, projectID, actor),
		Action:    notify.ActionCreated,
	})

	return created, nil
}

// Respond accepts or rejects an invitation on behalf of its invitee. A rejected invitation is
// deleted and returned with status REJECTED.
func (s *MembershipService) Respond(ctx context.Context, actor, invitationID uuid.UUID, status Status) (*Membership, error) {
	m, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	switch status {
	case StatusPending:
		return nil, perrors.BadRequest("invitation is pending")

	case StatusAccepted:
		next, err := Accept(*m, actor)
		if err != nil {
			return nil, err
		}

		accepted, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Membership, error) {
			return s.repo.Transition(ctx, *m, next)
		}, func(*Membership) []string {
			return membershipKeys(*m)
		})
		if err != nil {
			return nil, invitationErr(err)
		}

		s.notify(ctx, actor, *accepted, "Invitation accepted", notify.ActionUpdated)
		return accepted, nil

	case StatusRejected:
		if err := Reject(*m, actor); err != nil {
			return nil, err
		}

		if err := s.delete(ctx, *m); err != nil {
			return nil, invitationErr(err)
		}

		rejected := *m
		rejected.Status = StatusRejected
		s.notify(ctx, actor, rejected, "Invitation rejected", notify.ActionDeleted)
		return &rejected, nil

	default:
		return nil, perrors.BadRequest("unknown invitation status %q", status)
	}
}

// Revoke withdraws a pending invitation.
func (s *MembershipService) Revoke(ctx context.Context, actor, invitationID uuid.UUID) (*Membership, error) {
	m, err := s.getInvitation(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if err := Revoke(*m); err != nil {
		return nil, err
	}

	if err := s.delete(ctx, *m); err != nil {
		return nil, invitationErr(err)
	}

	s.notify(ctx, actor, *m, "Invitation revoked", notify.ActionDeleted)
	return m, nil
}

// UpdateRole changes the role of an accepted member.
func (s *MembershipService) UpdateRole(ctx context.Context, actor, projectID, userID uuid.UUID, role Role) (*Membership, error) {
	m, err := s.repo.GetByUserProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	next, err := ChangeRole(*m, role)
	if err != nil {
		return nil, err
	}

	updated, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Membership, error) {
		return s.repo.Transition(ctx, *m, next)
	}, func(m *Membership) []string {
		pid := m.ProjectID.String()
		return cache.Keys{}.Add(cache.ProjectUsersKey(pid), cache.ProjectKey(pid))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, actor, *updated, fmt.Sprintf("User role updated to %s", role), notify.ActionUpdated)
	return updated, nil
}

// Remove drops a member or a pending invitee from the project.
func (s *MembershipService) Remove(ctx context.Context, actor, projectID, userID uuid.UUID) (*Membership, error) {
	m, err := s.repo.GetByUserProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if err := Remove(*m); err != nil {
		return nil, err
	}

	if err := s.delete(ctx, *m); err != nil {
		return nil, err
	}

	s.notify(ctx, actor, *m, "User removed from project", notify.ActionDeleted)
	return m, nil
}

// ListMembers returns the accepted members of a project.
func (s *MembershipService) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*Member, error) {
	return cache.ReadList(ctx, s.cache, cache.ProjectUsersKey(projectID.String()), func(ctx context.Context) ([]*Member, error) {
		return s.repo.ListMembers(ctx, projectID)
	}, ErrNoMembers)
}

// ListProjectInvitations returns the pending invitations sent by a project.
func (s *MembershipService) ListProjectInvitations(ctx context.Context, projectID uuid.UUID) ([]*Invitation, error) {
	return cache.ReadList(ctx, s.cache, cache.ProjectInvitationsKey(projectID.String()), func(ctx context.Context) ([]*Invitation, error) {
		return s.repo.ListProjectInvitations(ctx, projectID)
	}, ErrNoInvitations)
}

// ListUserInvitations returns the pending invitations addressed to a user.
func (s *MembershipService) ListUserInvitations(ctx context.Context, userID uuid.UUID) ([]*Invitation, error) {
	return cache.ReadList(ctx, s.cache, cache.UserInvitationsKey(userID.String()), func(ctx context.Context) ([]*Invitation, error) {
		return s.repo.ListUserInvitations(ctx, userID)
	}, ErrNoInvitations)
}

// GetInvitation returns a pending invitation to its invitee.
func (s *MembershipService) GetInvitation(ctx context.Context, actor, invitationID uuid.UUID) (*Invitation, error) {
	invitation, err := cache.Read(ctx, s.cache, cache.InvitationKey(invitationID.String()), func(ctx context.Context) (*Invitation, error) {
		return s.repo.GetInvitation(ctx, invitationID)
	})
	if err != nil {
		return nil, err
	}

	if invitation.UserID != actor {
		return nil, perrors.Forbidden("invitation belongs to another user")
	}

	return invitation, nil
}

func (s *MembershipService) getInvitation(ctx context.Context, id uuid.UUID) (*Membership, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, invitationErr(err)
	}
	return m, nil
}

func (s *MembershipService) delete(ctx context.Context, m Membership) error {
	_, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.Delete(ctx, m)
	}, func(struct{}) []string {
		return membershipKeys(m)
	})
	return err
}

func (s *MembershipService) notify(ctx context.Context, actor uuid.UUID, m Membership, title string, action notify.Action) {
	s.notifier.Notify(ctx, notify.Event{
		ActorID:   actor,
		UserID:    m.UserID,
		ProjectID: m.ProjectID,
		Title:     title,
		Details:   fmt.Sprintf("%s: user %s, project %s, by %s", title, m.UserID, m.ProjectID, actor),
		Action:    action,
	})
}

func invitationErr(err error) error {
	if errors.Is(err, ErrMembershipNotFound) {
		return ErrInvitationNotFound
	}
	return err
}
