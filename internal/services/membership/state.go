package membership

import (
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
)

// The functions below are the only way memberships change shape. They never touch storage;
// the repository applies their result as one conditional write.

// NewOwner is the membership created together with a project.
func NewOwner(userID, projectID uuid.UUID) Membership {
	return Membership{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Role:      RoleOwner,
		Status:    StatusAccepted,
		IsActive:  true,
	}
}

// NewInvitation invites userID to projectID. existing is the user's current membership in
// the project, if any.
func NewInvitation(userID, projectID uuid.UUID, existing *Membership) (Membership, error) {
	if existing != nil {
		switch existing.Status {
		case StatusPending:
			return Membership{}, perrors.Conflict("user already invited to project")
		case StatusAccepted:
			return Membership{}, perrors.Conflict("user already in project")
		}
	}

	return Membership{
		ID:        uuid.New(),
		UserID:    userID,
		ProjectID: projectID,
		Role:      RoleInvited,
		Status:    StatusPending,
		IsActive:  false,
	}, nil
}

// Accept turns a pending invitation into a membership. Only the invitee may accept.
func Accept(m Membership, actor uuid.UUID) (Membership, error) {
	if err := checkInvitee(m, actor); err != nil {
		return Membership{}, err
	}

	m.Status = StatusAccepted
	m.IsActive = true
	if m.Role == RoleInvited {
		m.Role = RoleMember
	}
	return m, nil
}

// Reject checks that actor may decline the invitation. Rejection deletes the record.
func Reject(m Membership, actor uuid.UUID) error {
	return checkInvitee(m, actor)
}

// Revoke checks that the invitation can still be withdrawn by its project.
func Revoke(m Membership) error {
	if m.Status != StatusPending {
		return perrors.BadRequest("only pending invitations can be revoked")
	}
	return nil
}

// ChangeRole sets a new role on an accepted, non-owner membership.
func ChangeRole(m Membership, role Role) (Membership, error) {
	switch {
	case role == RoleOwner:
		return Membership{}, perrors.BadRequest("cannot assign the OWNER role")
	case role == RoleInvited:
		return Membership{}, perrors.BadRequest("cannot assign the INVITED role")
	case role != RoleAdmin && role != RoleMember:
		return Membership{}, perrors.BadRequest("unknown role %q", role)
	case m.Status != StatusAccepted:
		return Membership{}, perrors.BadRequest("user has not joined the project")
	case m.Role == RoleOwner:
		return Membership{}, perrors.BadRequest("cannot change the role of the project owner")
	case m.Role == role:
		return Membership{}, perrors.BadRequest("user already has role %s", role)
	}

	m.Role = role
	return m, nil
}

// Remove checks that m can be dropped from its project.
func Remove(m Membership) error {
	if m.Role == RoleOwner {
		return perrors.BadRequest("cannot remove the project owner")
	}
	return nil
}

func checkInvitee(m Membership, actor uuid.UUID) error {
	if m.UserID != actor {
		return perrors.Forbidden("invitation belongs to another user")
	}
	if m.Status != StatusPending {
		return perrors.Conflict("invitation already answered")
	}
	return nil
}
