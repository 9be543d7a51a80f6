package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrTaskNotFound = perrors.NotFound("task not found")

const taskColumns = `id, project_id, title, description, due_date, status, priority, created_by_user_id,
        assigned_to_user_id, assigned_by_user_id, completed_at, is_archived, archived_at, archived_by_user_id,
        is_deleted, deleted_at, deleted_by_user_id, created_at, updated_at`

// qualifiedTaskColumns is taskColumns for queries joining tasks as t.
const qualifiedTaskColumns = `t.id, t.project_id, t.title, t.description, t.due_date, t.status, t.priority, t.created_by_user_id,
        t.assigned_to_user_id, t.assigned_by_user_id, t.completed_at, t.is_archived, t.archived_at,
        t.archived_by_user_id, t.is_deleted, t.deleted_at, t.deleted_by_user_id, t.created_at, t.updated_at`

// liveTask restricts a write to tasks that are neither archived nor deleted.
const liveTask = `is_archived = FALSE AND is_deleted = FALSE`

// Repository is the task store used by TaskService.
type Repository interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (*Task, error)
	SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Task, error)
	SetPriority(ctx context.Context, id uuid.UUID, priority Priority) (*Task, error)
	Assign(ctx context.Context, id, assignee, assigner uuid.UUID) (*Reassignment, error)
	Archive(ctx context.Context, id, actor uuid.UUID) (*Task, error)
	SoftDelete(ctx context.Context, id, actor uuid.UUID) (*Reassignment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Task, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]*UserTask, error)
	IsAcceptedMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error)
}

// TaskRepo handles database operations for tasks
type TaskRepo struct {
	db *sqlx.DB
}

// NewTaskRepo creates a new task repository
func NewTaskRepo(db *sqlx.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Create(ctx context.Context, t *Task) (*Task, error) {
	query := `
        INSERT INTO tasks (id, project_id, title, description, due_date, status, priority, created_by_user_id,
                           assigned_to_user_id, assigned_by_user_id, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING ` + taskColumns

	var created Task
	err := r.db.GetContext(ctx, &created, query,
		t.ID, t.ProjectID, t.Title, t.Description, t.DueDate, t.Status, t.Priority, t.CreatedByUserID,
		t.AssignedToUserID, t.AssignedByUserID, t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &created, nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return r.getOne(ctx, "get task", `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
}

// Update applies the set fields of req. A status change to DONE stamps completed_at.
func (r *TaskRepo) Update(ctx context.Context, id uuid.UUID, req *UpdateTaskRequest) (*Task, error) {
	setParts := []string{}
	args := []interface{}{}
	guard := ""

	if req.Title != nil {
		setParts = append(setParts, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, *req.Title)
	}

	if req.Description != nil {
		setParts = append(setParts, fmt.Sprintf("description = $%d", len(args)+1))
		args = append(args, *req.Description)
	}

	if req.DueDate != nil {
		setParts = append(setParts, fmt.Sprintf("due_date = $%d", len(args)+1))
		args = append(args, *req.DueDate)
	}

	if req.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", len(args)+1), completedAtExpr(len(args)+1))
		args = append(args, *req.Status)
		guard = " AND " + liveTask
	}

	if req.Priority != nil {
		setParts = append(setParts, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *req.Priority)
		guard = " AND " + liveTask
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE tasks
        SET %s
        WHERE id = $%d%s
        RETURNING %s
    `, strings.Join(setParts, ", "), len(args), guard, taskColumns)

	return r.getOne(ctx, "update task", query, args...)
}

func (r *TaskRepo) SetStatus(ctx context.Context, id uuid.UUID, status Status) (*Task, error) {
	query := `
        UPDATE tasks
        SET status = $1, ` + completedAtExpr(1) + `, updated_at = NOW()
        WHERE id = $2 AND ` + liveTask + `
        RETURNING ` + taskColumns

	return r.getOne(ctx, "update task status", query, status, id)
}

func (r *TaskRepo) SetPriority(ctx context.Context, id uuid.UUID, priority Priority) (*Task, error) {
	query := `
        UPDATE tasks
        SET priority = $1, updated_at = NOW()
        WHERE id = $2 AND ` + liveTask + `
        RETURNING ` + taskColumns

	return r.getOne(ctx, "update task priority", query, priority, id)
}

func (r *TaskRepo) Assign(ctx context.Context, id, assignee, assigner uuid.UUID) (*Reassignment, error) {
	return r.reassign(ctx, "assign task",
		`assigned_to_user_id = $1, assigned_by_user_id = $2, updated_at = NOW()`,
		`t.is_deleted = FALSE`,
		assignee, assigner, id)
}

func (r *TaskRepo) Archive(ctx context.Context, id, actor uuid.UUID) (*Task, error) {
	query := `
        UPDATE tasks
        SET is_archived = TRUE, archived_at = NOW(), archived_by_user_id = $1, updated_at = NOW()
        WHERE id = $2 AND ` + liveTask + `
        RETURNING ` + taskColumns

	return r.getOne(ctx, "archive task", query, actor, id)
}

// SoftDelete marks the task deleted and drops its assignment.
func (r *TaskRepo) SoftDelete(ctx context.Context, id, actor uuid.UUID) (*Reassignment, error) {
	return r.reassign(ctx, "delete task",
		`is_deleted = TRUE, deleted_at = NOW(), deleted_by_user_id = $1,
            assigned_to_user_id = NULL, assigned_by_user_id = NULL, updated_at = NOW()`,
		`t.is_deleted = FALSE`,
		actor, id)
}

// reassign runs an update that may change the assignee and returns the assignee it replaced.
// The old row is locked by the same statement, so a concurrent assignment either lands before
// it and shows up as the previous assignee, or waits for it. The task id is the last arg.
func (r *TaskRepo) reassign(ctx context.Context, op, set, guard string, args ...interface{}) (*Reassignment, error) {
	query := fmt.Sprintf(`
        UPDATE tasks t
        SET %s
        FROM (SELECT id, assigned_to_user_id FROM tasks WHERE id = $%d FOR UPDATE) old
        WHERE t.id = old.id AND %s
        RETURNING old.assigned_to_user_id AS previous_assignee_id, %s
    `, set, len(args), guard, qualifiedTaskColumns)

	var out Reassignment
	if err := r.db.GetContext(ctx, &out, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return &out, nil
}

// ListByProject returns the tasks of a project that are neither archived nor deleted.
func (r *TaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE project_id = $1 AND ` + liveTask + ` ORDER BY created_at DESC`

	var tasks []*Task
	if err := r.db.SelectContext(ctx, &tasks, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepo) ListByAssignee(ctx context.Context, userID uuid.UUID) ([]*UserTask, error) {
	query := `
        SELECT ` + qualifiedTaskColumns + `, p.name AS project_name
        FROM tasks t
        JOIN projects p ON p.id = t.project_id
        WHERE t.assigned_to_user_id = $1
        ORDER BY t.created_at DESC
    `

	var tasks []*UserTask
	if err := r.db.SelectContext(ctx, &tasks, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user tasks: %w", err)
	}

	return tasks, nil
}

func (r *TaskRepo) IsAcceptedMember(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM user_projects WHERE user_id = $1 AND project_id = $2 AND status = 'ACCEPTED')`

	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, userID, projectID); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	return ok, nil
}

func (r *TaskRepo) getOne(ctx context.Context, op, query string, args ...interface{}) (*Task, error) {
	var t Task
	if err := r.db.GetContext(ctx, &t, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return &t, nil
}

// completedAtExpr keeps completed_at in step with the status bound to placeholder n.
func completedAtExpr(n int) string {
	return fmt.Sprintf("completed_at = CASE WHEN $%d = 'DONE' THEN COALESCE(completed_at, NOW()) ELSE NULL END", n)
}
