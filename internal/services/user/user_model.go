package user

import (
	"time"

	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProjectRef is one membership the user holds, pending or accepted.
type ProjectRef struct {
	MembershipID uuid.UUID         `db:"id"`
	ProjectID    uuid.UUID         `db:"project_id"`
	Role         membership.Role   `db:"role"`
	Status       membership.Status `db:"status"`
}

// TaskRef is a task that names the user as assignee, assigner, archiver or deleter.
type TaskRef struct {
	ID               uuid.UUID  `db:"id"`
	ProjectID        uuid.UUID  `db:"project_id"`
	AssignedToUserID *uuid.UUID `db:"assigned_to_user_id"`
}

// Footprint is what a deleted user leaves behind in other cached views.
type Footprint struct {
	Projects []ProjectRef
	Tasks    []TaskRef
}

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=72"`
}
