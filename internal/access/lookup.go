package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// StoreLookup implements Lookup directly on the database.
type StoreLookup struct {
	db      *sqlx.DB
	members *membership.MembershipRepo
}

func NewStoreLookup(db *sqlx.DB) *StoreLookup {
	return &StoreLookup{
		db:      db,
		members: membership.NewMembershipRepo(db),
	}
}

func (l *StoreLookup) ProjectExists(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	if err := l.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)`, projectID); err != nil {
		return false, fmt.Errorf("failed to look up project: %w", err)
	}
	return exists, nil
}

func (l *StoreLookup) TaskProject(ctx context.Context, taskID uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	if err := l.db.GetContext(ctx, &projectID, `SELECT project_id FROM tasks WHERE id = $1`, taskID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrTaskNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up task: %w", err)
	}
	return projectID, nil
}

func (l *StoreLookup) InvitationProject(ctx context.Context, invitationID uuid.UUID) (uuid.UUID, error) {
	m, err := l.members.GetByID(ctx, invitationID)
	if err != nil {
		return uuid.Nil, err
	}
	return m.ProjectID, nil
}

func (l *StoreLookup) Membership(ctx context.Context, userID, projectID uuid.UUID) (*membership.Membership, error) {
	return l.members.GetByUserProject(ctx, userID, projectID)
}
