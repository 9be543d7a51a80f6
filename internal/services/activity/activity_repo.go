package activity

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Create(ctx context.Context, log *ActivityLog) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*ActivityLog, error)
}

// ActivityRepo handles database operations for activity logs
type ActivityRepo struct {
	db *sqlx.DB
}

func NewActivityRepo(db *sqlx.DB) *ActivityRepo {
	return &ActivityRepo{db: db}
}

func (r *ActivityRepo) Create(ctx context.Context, log *ActivityLog) error {
	query := `
        INSERT INTO activity_logs (id, user_id, project_id, task_id, title, details, action, created_at)
        VALUES (:id, :user_id, :project_id, :task_id, :title, :details, :action, :created_at)
    `

	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}
	return nil
}

func (r *ActivityRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*ActivityLog, error) {
	query := `
        SELECT id, user_id, project_id, task_id, title, details, action, created_at
        FROM activity_logs
        WHERE project_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `

	var logs []*ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, projectID, limit); err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, nil
}
