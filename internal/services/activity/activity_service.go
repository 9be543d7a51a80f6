package activity

import (
	"context"
	"log/slog"

	"github.com/curaious/teamboard/internal/notify"
	"github.com/google/uuid"
)

const defaultListLimit = 100

// ActivityService records committed mutations and lists them per project. It is a
// notify.Notifier, so every service reports through it without knowing about the log.
type ActivityService struct {
	repo Repository
}

func NewActivityService(repo Repository) *ActivityService {
	return &ActivityService{repo: repo}
}

// Notify records event. A failed insert is logged; the mutation it describes already committed.
func (s *ActivityService) Notify(ctx context.Context, event notify.Event) {
	log := &ActivityLog{
		ID:        uuid.New(),
		UserID:    event.UserID,
		ProjectID: event.ProjectID,
		TaskID:    event.TaskID,
		Title:     event.Title,
		Details:   event.Details,
		Action:    event.Action,
		CreatedAt: event.CreatedAt,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		slog.ErrorContext(ctx, "Failed to record activity",
			slog.String("project_id", event.ProjectID.String()),
			slog.String("title", event.Title),
			slog.Any("error", err))
	}
}

// ListByProject returns the most recent activity of a project, newest first
func (s *ActivityService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ActivityLog, error) {
	logs, err := s.repo.ListByProject(ctx, projectID, defaultListLimit)
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []*ActivityLog{}
	}
	return logs, nil
}
