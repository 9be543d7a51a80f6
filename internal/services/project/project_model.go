package project

import (
	"time"

	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/google/uuid"
)

// Project is a shared workspace. It always has exactly one OWNER membership.
type Project struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageURL    *string   `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProjectDetail is a project with its accepted members and live tasks
type ProjectDetail struct {
	Project
	Members []*membership.Member `json:"users"`
	Tasks   []*task.Task         `json:"tasks"`
}

// Dependents are the rows hanging off a project, used to build its invalidation set.
type Dependents struct {
	MemberIDs   []uuid.UUID
	TaskIDs     []uuid.UUID
	AssigneeIDs []uuid.UUID
	Invitations []membership.Membership
}

// CreateProjectRequest captures payload for creating a project
type CreateProjectRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description string  `json:"description" validate:"required"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateProjectRequest captures payload for updating a project
type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description,omitempty"`
	ImageURL    *string `json:"image_url,omitempty" validate:"omitempty,url"`
}
