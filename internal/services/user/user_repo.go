package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrUserNotFound      = perrors.NotFound("user not found")
	ErrUserAlreadyExists = perrors.Conflict("User already exists")
)

const uniqueViolation = "23505"

const userColumns = `id, email, username, password_hash, created_at, updated_at`

// Repository is the user store used by UserService.
type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Search(ctx context.Context, query string, take, skip int) ([]*User, error)
	Update(ctx context.Context, id uuid.UUID, fields Fields) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) (*Footprint, error)
	Projects(ctx context.Context, id uuid.UUID) ([]ProjectRef, error)
}

// Fields holds the columns an update writes; nil fields are left unchanged.
type Fields struct {
	Email        *string
	Username     *string
	PasswordHash *string
}

// UserRepo handles database operations for users
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *User) (*User, error) {
	query := `
		INSERT INTO users (id, email, username, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	var created User
	if err := r.db.GetContext(ctx, &created, query, u.ID, u.Email, u.Username, u.PasswordHash); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &created, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// Search matches query against email and username, case-insensitively.
func (r *UserRepo) Search(ctx context.Context, query string, take, skip int) ([]*User, error) {
	q := `
		SELECT ` + userColumns + `
		FROM users
		WHERE $1 = '' OR email ILIKE $2 OR username ILIKE $2
		ORDER BY username
		LIMIT $3 OFFSET $4
	`

	var users []*User
	if err := r.db.SelectContext(ctx, &users, q, query, "%"+escapeLike(query)+"%", take, skip); err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (r *UserRepo) Update(ctx context.Context, id uuid.UUID, fields Fields) (*User, error) {
	setParts := []string{}
	args := []interface{}{}

	for _, f := range []struct {
		column string
		value  *string
	}{
		{"email", fields.Email},
		{"username", fields.Username},
		{"password_hash", fields.PasswordHash},
	} {
		if f.value != nil {
			args = append(args, *f.value)
			setParts = append(setParts, fmt.Sprintf("%s = $%d", f.column, len(args)))
		}
	}

	if len(setParts) == 0 {
		return r.GetByID(ctx, id)
	}

	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING %s`, strings.Join(setParts, ", "), len(args), userColumns)

	var updated User
	if err := r.db.GetContext(ctx, &updated, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &updated, nil
}

// Delete removes a user. Memberships cascade and task references go NULL. The rows touched
// that way are collected while the user row is locked, which blocks new rows referencing it.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) (*Footprint, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked uuid.UUID
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	fp := &Footprint{}

	if err := tx.SelectContext(ctx, &fp.Projects, projectsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to list user projects: %w", err)
	}

	query := `
		SELECT id, project_id, assigned_to_user_id
		FROM tasks
		WHERE assigned_to_user_id = $1 OR assigned_by_user_id = $1
		   OR archived_by_user_id = $1 OR deleted_by_user_id = $1
		FOR UPDATE
	`
	if err := tx.SelectContext(ctx, &fp.Tasks, query, id); err != nil {
		return nil, fmt.Errorf("failed to list user tasks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user deletion: %w", err)
	}

	return fp, nil
}

const projectsQuery = `SELECT id, project_id, role, status FROM user_projects WHERE user_id = $1`

func (r *UserRepo) Projects(ctx context.Context, id uuid.UUID) ([]ProjectRef, error) {
	var refs []ProjectRef
	if err := r.db.SelectContext(ctx, &refs, projectsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to list user projects: %w", err)
	}
	return refs, nil
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	var u User
	if err := r.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
