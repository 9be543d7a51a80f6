package project

import (
	"context"
	"fmt"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
)

var ErrNoProjects = perrors.NotFound("no projects found")

// ProjectService contains business logic for projects
type ProjectService struct {
	repo     Repository
	cache    *cache.Manager
	notifier notify.Notifier
}

// NewProjectService constructs a new ProjectService
func NewProjectService(repo Repository, cache *cache.Manager, notifier notify.Notifier) *ProjectService {
	return &ProjectService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
	}
}

// Create registers a new project owned by actor
func (s *ProjectService) Create(ctx context.Context, actor uuid.UUID, req *CreateProjectRequest) (*Project, error) {
	p := &Project{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	}

	created, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Project, error) {
		return s.repo.CreateWithOwner(ctx, p, actor)
	}, func(p *Project) []string {
		return cache.Keys{}.Add(cache.ProjectKey(p.ID.String()), cache.UserProjectsKey(actor.String()))
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, actor, created.ID, fmt.Sprintf("Project %s was created", created.Name), created.Description, notify.ActionCreated)
	return created, nil
}

// Get returns the project with its members and live tasks
func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*ProjectDetail, error) {
	return cache.Read(ctx, s.cache, cache.ProjectKey(id.String()), func(ctx context.Context) (*ProjectDetail, error) {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		members, err := s.repo.Members(ctx, id)
		if err != nil {
			return nil, err
		}

		tasks, err := s.repo.Tasks(ctx, id)
		if err != nil {
			return nil, err
		}

		return &ProjectDetail{Project: *p, Members: members, Tasks: tasks}, nil
	})
}

// ListForUser returns the projects userID has accepted membership in
func (s *ProjectService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Project, error) {
	return cache.ReadList(ctx, s.cache, cache.UserProjectsKey(userID.String()), func(ctx context.Context) ([]*Project, error) {
		return s.repo.ListForUser(ctx, userID)
	}, ErrNoProjects)
}

type updated struct {
	project *Project
	members []uuid.UUID
}

// Update changes project fields and drops every member's project list
func (s *ProjectService) Update(ctx context.Context, actor, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
	result, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (updated, error) {
		p, err := s.repo.Update(ctx, id, req)
		if err != nil {
			return updated{}, err
		}
		members, err := s.repo.MemberIDs(ctx, id)
		if err != nil {
			return updated{}, err
		}
		return updated{project: p, members: members}, nil
	}, func(u updated) []string {
		return cache.Keys{}.
			Add(cache.ProjectKey(id.String())).
			Each(idStrings(u.members), cache.UserProjectsKey)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, actor, id, fmt.Sprintf("Project %s was updated", result.project.Name), result.project.Description, notify.ActionUpdated)
	return result.project, nil
}

// Delete removes the project with its memberships and tasks
func (s *ProjectService) Delete(ctx context.Context, actor, id uuid.UUID) error {
	_, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Dependents, error) {
		return s.repo.Delete(ctx, id)
	}, func(d *Dependents) []string {
		return deleteKeys(id, d)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, actor, id, "Project was deleted", fmt.Sprintf("Project %s was deleted by %s", id, actor), notify.ActionDeleted)
	return nil
}

func (s *ProjectService) notify(ctx context.Context, actor, projectID uuid.UUID, title, details string, action notify.Action) {
	s.notifier.Notify(ctx, notify.Event{
		ActorID:   actor,
		UserID:    actor,
		ProjectID: projectID,
		Title:     title,
		Details:   details,
		Action:    action,
	})
}

// deleteKeys covers every cached view that embedded the project or one of its rows.
func deleteKeys(id uuid.UUID, d *Dependents) []string {
	pid := id.String()
	keys := cache.Keys{}.
		Add(
			cache.ProjectKey(pid),
			cache.ProjectUsersKey(pid),
			cache.ProjectInvitationsKey(pid),
			cache.ProjectTasksKey(pid),
			cache.GroupedTasksKey(pid),
		).
		Each(idStrings(d.MemberIDs), cache.UserProjectsKey).
		Each(idStrings(d.TaskIDs), cache.TaskKey).
		Each(idStrings(d.AssigneeIDs), cache.UserTasksKey)

	for _, inv := range d.Invitations {
		keys = keys.Add(cache.InvitationKey(inv.ID.String()), cache.UserInvitationsKey(inv.UserID.String()))
	}

	return keys
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
