package membership

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleMember  Role = "MEMBER"
	RoleInvited Role = "INVITED"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	// StatusRejected is only ever a response value. A rejected invitation is deleted.
	StatusRejected Status = "REJECTED"
)

// Membership is a user's relationship to a project. A pending membership doubles as an
// invitation and is addressed by its ID.
type Membership struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	Role      Role      `json:"role" db:"role"`
	Status    Status    `json:"status" db:"status"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Member is an accepted membership joined with its user.
type Member struct {
	Membership
	Email    string `json:"email" db:"email"`
	Username string `json:"username" db:"username"`
}

// Invitation is a pending membership joined with its user and project.
type Invitation struct {
	Membership
	Email       string `json:"email" db:"email"`
	Username    string `json:"username" db:"username"`
	ProjectName string `json:"project_name" db:"project_name"`
}

type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type RespondRequest struct {
	Status Status `json:"status" validate:"required,oneof=PENDING ACCEPTED REJECTED"`
}

type UpdateRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=OWNER ADMIN MEMBER INVITED"`
}
