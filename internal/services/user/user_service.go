package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTake = 10
	maxTake     = 100
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoUsers            = perrors.NotFound("no users found")
)

type UserService struct {
	repo      Repository
	cache     *cache.Manager
	searchTTL time.Duration
}

// NewUserService builds the service. Search pages are cached for searchTTL.
func NewUserService(repo Repository, cache *cache.Manager, searchTTL time.Duration) *UserService {
	return &UserService{
		repo:      repo,
		cache:     cache,
		searchTTL: searchTTL,
	}
}

// Create registers a user. Email and username must both be unused.
func (s *UserService) Create(ctx context.Context, req *SignUpRequest) (*User, error) {
	email := normalizeEmail(req.Email)

	if err := s.checkAvailable(ctx, uuid.Nil, &email, &req.Username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*User, error) {
		return s.repo.Create(ctx, &User{
			ID:           uuid.New(),
			Email:        email,
			Username:     req.Username,
			PasswordHash: string(hash),
		})
	}, func(*User) []string {
		return []string{cache.UserSearchPattern()}
	})
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return cache.Read(ctx, s.cache, cache.UserKey(id.String()), func(ctx context.Context) (*User, error) {
		return s.repo.GetByID(ctx, id)
	})
}

// Search pages through users matching query. take defaults to 10 and is capped at 100.
func (s *UserService) Search(ctx context.Context, query string, take, skip int) ([]*User, error) {
	query = strings.TrimSpace(query)
	if take <= 0 {
		take = defaultTake
	}
	take = min(take, maxTake)
	skip = max(skip, 0)

	return cache.ReadList(ctx, s.cache, cache.UserSearchKey(query, take, skip), func(ctx context.Context) ([]*User, error) {
		return s.repo.Search(ctx, query, take, skip)
	}, ErrNoUsers, cache.WithTTL(s.searchTTL))
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, req *UpdateUserRequest) (*User, error) {
	fields := Fields{Username: req.Username}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		fields.Email = &email
	}

	if err := s.checkAvailable(ctx, id, fields.Email, fields.Username); err != nil {
		return nil, err
	}

	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		h := string(hash)
		fields.PasswordHash = &h
	}

	projects, err := s.repo.Projects(ctx, id)
	if err != nil {
		return nil, err
	}

	return cache.Mutate(ctx, s.cache, func(ctx context.Context) (*User, error) {
		return s.repo.Update(ctx, id, fields)
	}, func(*User) []string {
		return userKeys(id, projects)
	})
}

// Delete removes a user and their memberships. Owners must delete their projects first.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) error {
	projects, err := s.repo.Projects(ctx, id)
	if err != nil {
		return err
	}

	for _, p := range projects {
		if p.Role == membership.RoleOwner {
			return perrors.Conflict("user still owns project %s", p.ProjectID)
		}
	}

	_, err = cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Footprint, error) {
		return s.repo.Delete(ctx, id)
	}, func(fp *Footprint) []string {
		uid := id.String()
		keys := cache.Keys(userKeys(id, fp.Projects)).Add(
			cache.UserProjectsKey(uid),
			cache.UserTasksKey(uid),
		)
		for _, t := range fp.Tasks {
			pid := t.ProjectID.String()
			keys = keys.Add(
				cache.TaskKey(t.ID.String()),
				cache.ProjectTasksKey(pid),
				cache.GroupedTasksKey(pid),
				cache.ProjectKey(pid),
			)
			if t.AssignedToUserID != nil {
				keys = keys.Add(cache.UserTasksKey(t.AssignedToUserID.String()))
			}
		}
		return keys
	})
	return err
}

// checkAvailable fails with a conflict when email or username belongs to a user other than self.
func (s *UserService) checkAvailable(ctx context.Context, self uuid.UUID, email, username *string) error {
	lookups := []struct {
		value *string
		get   func(context.Context, string) (*User, error)
	}{
		{email, s.repo.GetByEmail},
		{username, s.repo.GetByUsername},
	}

	for _, l := range lookups {
		if l.value == nil {
			continue
		}
		existing, err := l.get(ctx, *l.value)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				continue
			}
			return err
		}
		if existing.ID != self {
			return ErrUserAlreadyExists
		}
	}

	return nil
}

// userKeys covers the user entry, every search page and project user list, the detail of
// every project embedding the user, and every invitation view carrying the user's name.
func userKeys(id uuid.UUID, projects []ProjectRef) []string {
	uid := id.String()
	keys := cache.Keys{}.Add(cache.UserKey(uid), cache.UserSearchPattern(), cache.UserInvitationsKey(uid))
	for _, p := range projects {
		keys = keys.Add(cache.ProjectKey(p.ProjectID.String()))
		if p.Status == membership.StatusPending {
			keys = keys.Add(
				cache.InvitationKey(p.MembershipID.String()),
				cache.ProjectInvitationsKey(p.ProjectID.String()),
			)
		}
	}
	return keys
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
