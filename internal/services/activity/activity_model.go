package activity

import (
	"time"

	"github.com/curaious/teamboard/internal/notify"
	"github.com/google/uuid"
)

// ActivityLog is one recorded mutation in a project
type ActivityLog struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	UserID    uuid.UUID     `json:"user_id" db:"user_id"`
	ProjectID uuid.UUID     `json:"project_id" db:"project_id"`
	TaskID    *uuid.UUID    `json:"task_id,omitempty" db:"task_id"`
	Title     string        `json:"title" db:"title"`
	Details   string        `json:"details" db:"details"`
	Action    notify.Action `json:"action" db:"action"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
