package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrMembershipNotFound = perrors.NotFound("membership not found")
	ErrInvitationNotFound = perrors.NotFound("invitation not found")
	ErrUserNotFound       = perrors.NotFound("user not found")
)

const uniqueViolation = "23505"

const membershipColumns = `id, user_id, project_id, role, status, is_active, created_at, updated_at`

// Repository is the membership store used by MembershipService.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Membership, error)
	GetByUserProject(ctx context.Context, userID, projectID uuid.UUID) (*Membership, error)
	UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error)
	Create(ctx context.Context, m Membership) (*Membership, error)
	Transition(ctx context.Context, from, to Membership) (*Membership, error)
	Delete(ctx context.Context, m Membership) error
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*Member, error)
	ListProjectInvitations(ctx context.Context, projectID uuid.UUID) ([]*Invitation, error)
	ListUserInvitations(ctx context.Context, userID uuid.UUID) ([]*Invitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error)
}

// MembershipRepo handles database operations for the user_projects table
type MembershipRepo struct {
	db *sqlx.DB
}

// NewMembershipRepo creates a new membership repository
func NewMembershipRepo(db *sqlx.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

func (r *MembershipRepo) GetByID(ctx context.Context, id uuid.UUID) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_projects WHERE id = $1`

	var m Membership
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

func (r *MembershipRepo) GetByUserProject(ctx context.Context, userID, projectID uuid.UUID) (*Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM user_projects WHERE user_id = $1 AND project_id = $2`

	var m Membership
	if err := r.db.GetContext(ctx, &m, query, userID, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}

func (r *MembershipRepo) UserIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	var id uuid.UUID
	if err := r.db.GetContext(ctx, &id, `SELECT id FROM users WHERE email = $1`, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to get user: %w", err)
	}

	return id, nil
}

// Create inserts a new membership. The (user_id, project_id) unique key turns a concurrent
// duplicate invite into a conflict.
func (r *MembershipRepo) Create(ctx context.Context, m Membership) (*Membership, error) {
	query := `
        INSERT INTO user_projects (id, user_id, project_id, role, status, is_active)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + membershipColumns

	var created Membership
	err := r.db.GetContext(ctx, &created, query, m.ID, m.UserID, m.ProjectID, m.Role, m.Status, m.IsActive)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, perrors.Conflict("user already has a membership in this project")
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	return &created, nil
}

// Transition writes to over from, provided the row still has from's role and status.
func (r *MembershipRepo) Transition(ctx context.Context, from, to Membership) (*Membership, error) {
	query := `
        UPDATE user_projects
        SET role = $1, status = $2, is_active = $3, updated_at = NOW()
        WHERE id = $4 AND role = $5 AND status = $6
        RETURNING ` + membershipColumns

	var updated Membership
	err := r.db.GetContext(ctx, &updated, query, to.Role, to.Status, to.IsActive, from.ID, from.Role, from.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to update membership: %w", err)
	}

	return &updated, nil
}

// Delete removes m, provided it still has the observed status.
func (r *MembershipRepo) Delete(ctx context.Context, m Membership) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_projects WHERE id = $1 AND status = $2`, m.ID, m.Status)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrMembershipNotFound
	}

	return nil
}

func (r *MembershipRepo) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*Member, error) {
	query := `
        SELECT up.id, up.user_id, up.project_id, up.role, up.status, up.is_active, up.created_at, up.updated_at,
               u.email, u.username
        FROM user_projects up
        JOIN users u ON u.id = up.user_id
        WHERE up.project_id = $1 AND up.status = $2
        ORDER BY up.created_at
    `

	var members []*Member
	if err := r.db.SelectContext(ctx, &members, query, projectID, StatusAccepted); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

const invitationSelect = `
        SELECT up.id, up.user_id, up.project_id, up.role, up.status, up.is_active, up.created_at, up.updated_at,
               u.email, u.username, p.name AS project_name
        FROM user_projects up
        JOIN users u ON u.id = up.user_id
        JOIN projects p ON p.id = up.project_id
`

func (r *MembershipRepo) ListProjectInvitations(ctx context.Context, projectID uuid.UUID) ([]*Invitation, error) {
	query := invitationSelect + `WHERE up.project_id = $1 AND up.status = $2 ORDER BY up.created_at DESC`

	var invitations []*Invitation
	if err := r.db.SelectContext(ctx, &invitations, query, projectID, StatusPending); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return invitations, nil
}

func (r *MembershipRepo) ListUserInvitations(ctx context.Context, userID uuid.UUID) ([]*Invitation, error) {
	query := invitationSelect + `WHERE up.user_id = $1 AND up.status = $2 ORDER BY up.created_at DESC`

	var invitations []*Invitation
	if err := r.db.SelectContext(ctx, &invitations, query, userID, StatusPending); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return invitations, nil
}

func (r *MembershipRepo) GetInvitation(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	query := invitationSelect + `WHERE up.id = $1 AND up.status = $2`

	var invitation Invitation
	if err := r.db.GetContext(ctx, &invitation, query, id, StatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}

	return &invitation, nil
}
