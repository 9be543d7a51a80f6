package project

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/curaious/teamboard/internal/services/membership"
	"github.com/curaious/teamboard/internal/services/task"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotifier is a mock implementation of notify.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, event notify.Event) {
	m.Called(ctx, event)
}

type fakeRepo struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]*Project
	memberships []membership.Membership
	tasks       []*task.Task
	lists       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{projects: map[uuid.UUID]*Project{}}
}

func (r *fakeRepo) CreateWithOwner(_ context.Context, p *Project, owner uuid.UUID) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	c.CreatedAt = time.Now()
	r.projects[c.ID] = &c
	r.memberships = append(r.memberships, membership.NewOwner(owner, c.ID))
	out := c
	return &out, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	out := *p
	return &out, nil
}

func (r *fakeRepo) Members(_ context.Context, id uuid.UUID) ([]*membership.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*membership.Member
	for _, m := range r.memberships {
		if m.ProjectID == id && m.Status == membership.StatusAccepted {
			out = append(out, &membership.Member{Membership: m})
		}
	}
	return out, nil
}

func (r *fakeRepo) Tasks(_ context.Context, id uuid.UUID) ([]*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*task.Task
	for _, t := range r.tasks {
		if t.ProjectID == id {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []*Project
	for _, m := range r.memberships {
		if m.UserID == userID && m.Status == membership.StatusAccepted {
			if p, ok := r.projects[m.ProjectID]; ok {
				c := *p
				out = append(out, &c)
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, req *UpdateProjectRequest) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrProjectNotFound
	}
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	out := *p
	return &out, nil
}

func (r *fakeRepo) MemberIDs(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range r.memberships {
		if m.ProjectID == id {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uuid.UUID) (*Dependents, error) {
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}

	deps := &Dependents{}
	deps.MemberIDs, _ = r.MemberIDs(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ProjectID != id {
			continue
		}
		deps.TaskIDs = append(deps.TaskIDs, t.ID)
		if t.AssignedToUserID != nil {
			deps.AssigneeIDs = append(deps.AssigneeIDs, *t.AssignedToUserID)
		}
	}
	for _, m := range r.memberships {
		if m.ProjectID == id && m.Status == membership.StatusPending {
			deps.Invitations = append(deps.Invitations, m)
		}
	}
	delete(r.projects, id)
	return deps, nil
}

type fixture struct {
	repo     *fakeRepo
	store    *cache.MemoryStore
	notifier *MockNotifier
	svc      *ProjectService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := cache.NewMemoryStore(100)
	require.NoError(t, err)

	f := &fixture{repo: newFakeRepo(), store: store, notifier: &MockNotifier{}}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()
	f.svc = NewProjectService(f.repo, cache.NewManager(store, cache.Options{}), f.notifier)
	return f
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestProjectService_CreateMakesCreatorOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := uuid.New()

	_, err := f.svc.ListForUser(ctx, u)
	assert.ErrorIs(t, err, ErrNoProjects)

	first, err := f.svc.Create(ctx, u, &CreateProjectRequest{Name: "alpha", Description: "first"})
	require.NoError(t, err)

	require.Len(t, f.repo.memberships, 1)
	owner := f.repo.memberships[0]
	assert.Equal(t, u, owner.UserID)
	assert.Equal(t, first.ID, owner.ProjectID)
	assert.Equal(t, membership.RoleOwner, owner.Role)
	assert.Equal(t, membership.StatusAccepted, owner.Status)
	assert.True(t, owner.IsActive)

	projects, err := f.svc.ListForUser(ctx, u)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
	assert.True(t, f.cached(t, cache.UserProjectsKey(u.String())))

	_, err = f.svc.Create(ctx, u, &CreateProjectRequest{Name: "beta", Description: "second"})
	require.NoError(t, err)
	assert.False(t, f.cached(t, cache.UserProjectsKey(u.String())))

	projects, err = f.svc.ListForUser(ctx, u)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	f.notifier.AssertNumberOfCalls(t, "Notify", 2)
}

func TestProjectService_GetIncludesMembersAndTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := uuid.New()

	p, err := f.svc.Create(ctx, u, &CreateProjectRequest{Name: "alpha", Description: "first"})
	require.NoError(t, err)
	f.repo.tasks = append(f.repo.tasks, &task.Task{ID: uuid.New(), ProjectID: p.ID, Title: "t"})

	detail, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", detail.Name)
	assert.Len(t, detail.Members, 1)
	assert.Len(t, detail.Tasks, 1)

	_, err = f.svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestProjectService_UpdateDropsEveryMembersList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, member := uuid.New(), uuid.New()

	p, err := f.svc.Create(ctx, owner, &CreateProjectRequest{Name: "alpha", Description: "first"})
	require.NoError(t, err)
	accepted := membership.NewOwner(member, p.ID)
	accepted.Role = membership.RoleMember
	f.repo.memberships = append(f.repo.memberships, accepted)

	for _, uid := range []uuid.UUID{owner, member} {
		_, err := f.svc.ListForUser(ctx, uid)
		require.NoError(t, err)
	}
	_, err = f.svc.Get(ctx, p.ID)
	require.NoError(t, err)

	name := "renamed"
	_, err = f.svc.Update(ctx, owner, p.ID, &UpdateProjectRequest{Name: &name})
	require.NoError(t, err)

	assert.False(t, f.cached(t, cache.ProjectKey(p.ID.String())))
	assert.False(t, f.cached(t, cache.UserProjectsKey(owner.String())))
	assert.False(t, f.cached(t, cache.UserProjectsKey(member.String())))

	projects, err := f.svc.ListForUser(ctx, member)
	require.NoError(t, err)
	assert.Equal(t, "renamed", projects[0].Name)

	_, err = f.svc.Update(ctx, owner, uuid.New(), &UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestProjectService_DeleteFansOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, assignee, invitee := uuid.New(), uuid.New(), uuid.New()

	p, err := f.svc.Create(ctx, owner, &CreateProjectRequest{Name: "alpha", Description: "first"})
	require.NoError(t, err)

	taskID := uuid.New()
	f.repo.tasks = append(f.repo.tasks, &task.Task{ID: taskID, ProjectID: p.ID, AssignedToUserID: &assignee})
	invitation, err := membership.NewInvitation(invitee, p.ID, nil)
	require.NoError(t, err)
	f.repo.memberships = append(f.repo.memberships, invitation)

	pid := p.ID.String()
	keys := []string{
		cache.ProjectKey(pid),
		cache.UserProjectsKey(owner.String()),
		cache.ProjectUsersKey(pid),
		cache.ProjectInvitationsKey(pid),
		cache.ProjectTasksKey(pid),
		cache.GroupedTasksKey(pid),
		cache.TaskKey(taskID.String()),
		cache.UserTasksKey(assignee.String()),
		cache.InvitationKey(invitation.ID.String()),
		cache.UserInvitationsKey(invitee.String()),
	}
	for _, key := range keys {
		require.NoError(t, f.store.Set(ctx, key, []byte(`{}`), 0))
	}

	require.NoError(t, f.svc.Delete(ctx, owner, p.ID))

	for _, key := range keys {
		assert.False(t, f.cached(t, key), key)
	}

	err = f.svc.Delete(ctx, owner, p.ID)
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}
