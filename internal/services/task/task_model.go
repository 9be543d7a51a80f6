package task

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Task belongs to exactly one project for its whole life. Archive and delete are one-way.
type Task struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	ProjectID        uuid.UUID  `json:"project_id" db:"project_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	DueDate          *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status           Status     `json:"status" db:"status"`
	Priority         Priority   `json:"priority" db:"priority"`
	CreatedByUserID  uuid.UUID  `json:"created_by_user_id" db:"created_by_user_id"`
	AssignedToUserID *uuid.UUID `json:"assigned_to_user_id,omitempty" db:"assigned_to_user_id"`
	AssignedByUserID *uuid.UUID `json:"assigned_by_user_id,omitempty" db:"assigned_by_user_id"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	IsArchived       bool       `json:"is_archived" db:"is_archived"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty" db:"archived_at"`
	ArchivedByUserID *uuid.UUID `json:"archived_by_user_id,omitempty" db:"archived_by_user_id"`
	IsDeleted        bool       `json:"is_deleted" db:"is_deleted"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	DeletedByUserID  *uuid.UUID `json:"deleted_by_user_id,omitempty" db:"deleted_by_user_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Reassignment is a task write that may replace the assignee. PreviousAssigneeID is read
// under the same row lock as the write.
type Reassignment struct {
	Task
	PreviousAssigneeID *uuid.UUID `db:"previous_assignee_id"`
}

// UserTask is a task assigned to a user, with the name of its project.
type UserTask struct {
	Task
	ProjectName string `json:"project_name" db:"project_name"`
}

// Summary is the project task list with per-status counts.
type Summary struct {
	Tasks           []*Task `json:"tasks"`
	TodoTasks       int     `json:"todo_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	DoneTasks       int     `json:"done_tasks"`
	TotalTasks      int     `json:"total_tasks"`
}

// Grouped is the project task board: status, then priority, newest task first.
type Grouped struct {
	Tasks           map[Status]map[Priority][]*Task `json:"tasks"`
	TodoTasks       int                             `json:"todo_tasks"`
	InProgressTasks int                             `json:"in_progress_tasks"`
	DoneTasks       int                             `json:"done_tasks"`
	TotalTasks      int                             `json:"total_tasks"`
}

type CreateTaskRequest struct {
	Title            string     `json:"title" validate:"required,min=1,max=255"`
	Description      string     `json:"description" validate:"required"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	Status           *Status    `json:"status,omitempty" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority         *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedToUserID *uuid.UUID `json:"assigned_to_user_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      *Status    `json:"status,omitempty" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority    *Priority  `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE"`
}

type UpdatePriorityRequest struct {
	Priority Priority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH"`
}

type AssignRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}
