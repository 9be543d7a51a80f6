package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/curaious/teamboard/internal/perrors"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrProjectNotFound = perrors.NotFound("project not found")

const projectColumns = `id, name, description, image_url, created_at, updated_at`

// Repository is the project store used by ProjectService.
type Repository interface {
	CreateWithOwner(ctx context.Context, p *Project, owner uuid.UUID) (*Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Project, error)
	Members(ctx context.Context, id uuid.UUID) ([]*membership.Member, error)
	Tasks(ctx context.Context, id uuid.UUID) ([]*task.Task, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error)
	MemberIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) (*Dependents, error)
}

// ProjectRepo handles database operations for projects
type ProjectRepo struct {
	db          *sqlx.DB
	memberships *membership.MembershipRepo
	tasks       *task.TaskRepo
}

// NewProjectRepo creates a new project repository
func NewProjectRepo(db *sqlx.DB) *ProjectRepo {
	return &ProjectRepo{
		db:          db,
		memberships: membership.NewMembershipRepo(db),
		tasks:       task.NewTaskRepo(db),
	}
}

// CreateWithOwner inserts the project and its OWNER membership in one transaction
func (r *ProjectRepo) CreateWithOwner(ctx context.Context, p *Project, owner uuid.UUID) (*Project, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
        INSERT INTO projects (id, name, description, image_url)
        VALUES ($1, $2, $3, $4)
        RETURNING ` + projectColumns

	var created Project
	if err := tx.GetContext(ctx, &created, query, p.ID, p.Name, p.Description, p.ImageURL); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	m := membership.NewOwner(owner, created.ID)
	_, err = tx.ExecContext(ctx, `
        INSERT INTO user_projects (id, user_id, project_id, role, status, is_active)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, m.ID, m.UserID, m.ProjectID, m.Role, m.Status, m.IsActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project: %w", err)
	}

	return &created, nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*Project, error) {
	var project Project
	err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

func (r *ProjectRepo) Members(ctx context.Context, id uuid.UUID) ([]*membership.Member, error) {
	return r.memberships.ListMembers(ctx, id)
}

func (r *ProjectRepo) Tasks(ctx context.Context, id uuid.UUID) ([]*task.Task, error) {
	return r.tasks.ListByProject(ctx, id)
}

// ListForUser retrieves the projects a user is an accepted member of, newest first
func (r *ProjectRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	query := `
        SELECT p.id, p.name, p.description, p.image_url, p.created_at, p.updated_at
        FROM projects p
        JOIN user_projects up ON up.project_id = p.id
        WHERE up.user_id = $1 AND up.status = $2
        ORDER BY p.created_at DESC
    `

	var projects []*Project
	if err := r.db.SelectContext(ctx, &projects, query, userID, membership.StatusAccepted); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Update updates project fields
func (r *ProjectRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
	setParts := []string{}
	args := []interface{}{}

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", len(args)+1))
		args = append(args, *req.Name)
	}

	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}

	if req.ImageURL != nil {
		setParts = append(setParts, fmt.Sprintf("image_url = $%d", len(args)+1))
		args = append(args, *req.ImageURL)
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE projects
        SET %s
        WHERE id = $%d
        RETURNING %s
    `, strings.Join(setParts, ", "), len(args), projectColumns)

	var project Project
	err := r.db.GetContext(ctx, &project, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return &project, nil
}

// MemberIDs lists every user holding a membership in the project, pending invitees included
func (r *ProjectRepo) MemberIDs(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM user_projects WHERE project_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return ids, nil
}

// Delete removes a project. Memberships and tasks go with it through ON DELETE CASCADE. The
// rows that referenced the project are collected under the same row lock, so no task or
// invitation can slip in between collecting and deleting.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) (*Dependents, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked uuid.UUID
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}

	deps := &Dependents{}

	if err := tx.SelectContext(ctx, &deps.MemberIDs, `SELECT user_id FROM user_projects WHERE project_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}

	if err := tx.SelectContext(ctx, &deps.TaskIDs, `SELECT id FROM tasks WHERE project_id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to list project tasks: %w", err)
	}

	query := `SELECT DISTINCT assigned_to_user_id FROM tasks WHERE project_id = $1 AND assigned_to_user_id IS NOT NULL`
	if err := tx.SelectContext(ctx, &deps.AssigneeIDs, query, id); err != nil {
		return nil, fmt.Errorf("failed to list task assignees: %w", err)
	}

	query = `SELECT id, user_id, project_id, role, status, is_active, created_at, updated_at
        FROM user_projects WHERE project_id = $1 AND status = $2`
	if err := tx.SelectContext(ctx, &deps.Invitations, query, id, membership.StatusPending); err != nil {
		return nil, fmt.Errorf("failed to list pending invitations: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete project: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project deletion: %w", err)
	}

	return deps, nil
}
