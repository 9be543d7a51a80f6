package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	tasks     map[uuid.UUID]*Task
	members   map[[2]uuid.UUID]bool
	listCalls int

	// beforeReassign runs once at the start of the next Assign or SoftDelete, after the
	// service has read the task.
	beforeReassign func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		tasks:   map[uuid.UUID]*Task{},
		members: map[[2]uuid.UUID]bool{},
	}
}

func (r *fakeRepo) Create(_ context.Context, t *Task) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	c.CreatedAt = time.Now()
	r.tasks[c.ID] = &c
	out := c
	return &out, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	out := *t
	return &out, nil
}

func (r *fakeRepo) modify(id uuid.UUID, live bool, fn func(*Task)) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || (live && (t.IsArchived || t.IsDeleted)) {
		return nil, ErrTaskNotFound
	}
	fn(t)
	out := *t
	return &out, nil
}

func (r *fakeRepo) Update(_ context.Context, id uuid.UUID, req *UpdateTaskRequest) (*Task, error) {
	return r.modify(id, req.Status != nil || req.Priority != nil, func(t *Task) {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
	})
}

func (r *fakeRepo) SetStatus(_ context.Context, id uuid.UUID, status Status) (*Task, error) {
	return r.modify(id, true, func(t *Task) { t.Status = status })
}

func (r *fakeRepo) SetPriority(_ context.Context, id uuid.UUID, priority Priority) (*Task, error) {
	return r.modify(id, true, func(t *Task) { t.Priority = priority })
}

func (r *fakeRepo) reassign(id uuid.UUID, fn func(*Task)) (*Reassignment, error) {
	if hook := r.beforeReassign; hook != nil {
		r.beforeReassign = nil
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.IsDeleted {
		return nil, ErrTaskNotFound
	}
	previous := t.AssignedToUserID
	fn(t)
	return &Reassignment{Task: *t, PreviousAssigneeID: previous}, nil
}

func (r *fakeRepo) Assign(_ context.Context, id, assignee, assigner uuid.UUID) (*Reassignment, error) {
	return r.reassign(id, func(t *Task) {
		t.AssignedToUserID = &assignee
		t.AssignedByUserID = &assigner
	})
}

func (r *fakeRepo) Archive(_ context.Context, id, actor uuid.UUID) (*Task, error) {
	return r.modify(id, true, func(t *Task) {
		t.IsArchived = true
		t.ArchivedByUserID = &actor
	})
}

func (r *fakeRepo) SoftDelete(_ context.Context, id, actor uuid.UUID) (*Reassignment, error) {
	return r.reassign(id, func(t *Task) {
		t.IsDeleted = true
		t.DeletedByUserID = &actor
		t.AssignedToUserID = nil
		t.AssignedByUserID = nil
	})
}

func (r *fakeRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []*Task
	for _, t := range r.tasks {
		if t.ProjectID == projectID && !t.IsArchived && !t.IsDeleted {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByAssignee(_ context.Context, userID uuid.UUID) ([]*UserTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*UserTask
	for _, t := range r.tasks {
		if t.AssignedToUserID != nil && *t.AssignedToUserID == userID {
			out = append(out, &UserTask{Task: *t})
		}
	}
	return out, nil
}

func (r *fakeRepo) IsAcceptedMember(_ context.Context, userID, projectID uuid.UUID) (bool, error) {
	return r.members[[2]uuid.UUID{userID, projectID}], nil
}

type fixture struct {
	repo      *fakeRepo
	store     *cache.MemoryStore
	svc       *TaskService
	actor     uuid.UUID
	projectID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := cache.NewMemoryStore(100)
	require.NoError(t, err)

	f := &fixture{
		repo:      newFakeRepo(),
		store:     store,
		actor:     uuid.New(),
		projectID: uuid.New(),
	}
	f.svc = NewTaskService(f.repo, cache.NewManager(store, cache.Options{}), notify.Discard{})
	f.repo.members[[2]uuid.UUID{f.actor, f.projectID}] = true
	return f
}

func (f *fixture) create(t *testing.T, title string, req *CreateTaskRequest) *Task {
	t.Helper()
	if req == nil {
		req = &CreateTaskRequest{}
	}
	req.Title, req.Description = title, title+" description"

	created, err := f.svc.Create(context.Background(), f.actor, f.projectID, req)
	require.NoError(t, err)
	return created
}

func (f *fixture) cached(t *testing.T, key string) bool {
	t.Helper()
	_, ok, err := f.store.Get(context.Background(), key)
	require.NoError(t, err)
	return ok
}

func TestTaskService_Create(t *testing.T) {
	f := newFixture(t)

	created := f.create(t, "write docs", nil)
	assert.Equal(t, StatusTodo, created.Status)
	assert.Equal(t, PriorityLow, created.Priority)
	assert.Equal(t, f.actor, created.CreatedByUserID)
	assert.Nil(t, created.AssignedToUserID)

	done := StatusDone
	finished := f.create(t, "ship", &CreateTaskRequest{Status: &done})
	assert.NotNil(t, finished.CompletedAt)

	outsider := uuid.New()
	_, err := f.svc.Create(context.Background(), f.actor, f.projectID, &CreateTaskRequest{Title: "x", Description: "y", AssignedToUserID: &outsider})
	assert.ErrorIs(t, err, perrors.ErrBadRequest)
}

func TestTaskService_SummaryReloadsAfterMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ProjectSummary(ctx, f.projectID)
	assert.ErrorIs(t, err, ErrNoTasks)
	assert.False(t, f.cached(t, cache.ProjectTasksKey(f.projectID.String())))

	first := f.create(t, "one", nil)
	f.create(t, "two", nil)

	summary, err := f.svc.ProjectSummary(ctx, f.projectID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalTasks)
	assert.Equal(t, 2, summary.TodoTasks)

	_, err = f.svc.ProjectSummary(ctx, f.projectID)
	require.NoError(t, err)
	calls := f.repo.listCalls

	_, err = f.svc.UpdateStatus(ctx, f.actor, first.ID, StatusDone)
	require.NoError(t, err)

	summary, err = f.svc.ProjectSummary(ctx, f.projectID)
	require.NoError(t, err)
	assert.Equal(t, calls+1, f.repo.listCalls)
	assert.Equal(t, 1, summary.TodoTasks)
	assert.Equal(t, 1, summary.DoneTasks)
}

func TestTaskService_ArchivedTaskIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, "old", nil)

	_, err := f.svc.Archive(ctx, f.actor, created.ID)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, f.actor, created.ID, StatusDone)
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	_, err = f.svc.UpdatePriority(ctx, f.actor, created.ID, PriorityHigh)
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	high := PriorityHigh
	_, err = f.svc.Update(ctx, f.actor, created.ID, &UpdateTaskRequest{Priority: &high})
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	_, err = f.svc.Archive(ctx, f.actor, created.ID)
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	title := "renamed"
	updated, err := f.svc.Update(ctx, f.actor, created.ID, &UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
}

func TestTaskService_DeleteClearsAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assignee := uuid.New()
	f.repo.members[[2]uuid.UUID{assignee, f.projectID}] = true

	created := f.create(t, "fix bug", &CreateTaskRequest{AssignedToUserID: &assignee})
	require.NotNil(t, created.AssignedToUserID)

	tasks, err := f.svc.UserTasks(ctx, assignee)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, f.cached(t, cache.UserTasksKey(assignee.String())))

	deleted, err := f.svc.Delete(ctx, f.actor, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Nil(t, deleted.AssignedToUserID)
	assert.False(t, f.cached(t, cache.UserTasksKey(assignee.String())))

	_, err = f.svc.UserTasks(ctx, assignee)
	assert.ErrorIs(t, err, ErrNoTasks)

	_, err = f.svc.Delete(ctx, f.actor, created.ID)
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	// Deleted tasks stay readable by id.
	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}

func TestTaskService_Assign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	f.repo.members[[2]uuid.UUID{first, f.projectID}] = true
	f.repo.members[[2]uuid.UUID{second, f.projectID}] = true

	created := f.create(t, "review", &CreateTaskRequest{AssignedToUserID: &first})
	_, err := f.svc.UserTasks(ctx, first)
	require.NoError(t, err)

	updated, err := f.svc.Assign(ctx, f.actor, created.ID, second)
	require.NoError(t, err)
	assert.Equal(t, second, *updated.AssignedToUserID)
	assert.False(t, f.cached(t, cache.UserTasksKey(first.String())))

	_, err = f.svc.Assign(ctx, f.actor, created.ID, uuid.New())
	assert.ErrorIs(t, err, perrors.ErrBadRequest)

	_, err = f.svc.Assign(ctx, f.actor, uuid.New(), second)
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestTaskService_ConcurrentReassignment(t *testing.T) {
	tests := []struct {
		name  string
		write func(f *fixture, id uuid.UUID, next uuid.UUID) (*Task, error)
	}{
		{
			name: "assign",
			write: func(f *fixture, id, next uuid.UUID) (*Task, error) {
				return f.svc.Assign(context.Background(), f.actor, id, next)
			},
		},
		{
			name: "delete",
			write: func(f *fixture, id, _ uuid.UUID) (*Task, error) {
				return f.svc.Delete(context.Background(), f.actor, id)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			first, racer, next := uuid.New(), uuid.New(), uuid.New()
			for _, u := range []uuid.UUID{first, racer, next} {
				f.repo.members[[2]uuid.UUID{u, f.projectID}] = true
			}
			created := f.create(t, "contended", &CreateTaskRequest{AssignedToUserID: &first})

			// Another writer hands the task to racer and racer's list gets cached, all
			// after this write read the task but before it lands.
			f.repo.beforeReassign = func() {
				_, err := f.svc.Assign(ctx, f.actor, created.ID, racer)
				require.NoError(t, err)
				_, err = f.svc.UserTasks(ctx, racer)
				require.NoError(t, err)
				require.True(t, f.cached(t, cache.UserTasksKey(racer.String())))
			}

			_, err := tt.write(f, created.ID, next)
			require.NoError(t, err)

			assert.False(t, f.cached(t, cache.UserTasksKey(racer.String())))

			_, err = f.svc.UserTasks(ctx, racer)
			assert.ErrorIs(t, err, ErrNoTasks)
		})
	}
}

func TestGroup(t *testing.T) {
	now := time.Now()
	older := &Task{ID: uuid.New(), Status: StatusTodo, Priority: PriorityHigh, CreatedAt: now.Add(-time.Hour)}
	newer := &Task{ID: uuid.New(), Status: StatusTodo, Priority: PriorityHigh, CreatedAt: now}
	done := &Task{ID: uuid.New(), Status: StatusDone, Priority: PriorityLow, CreatedAt: now}

	g := group([]*Task{older, done, newer})

	require.Contains(t, g.Tasks, StatusTodo)
	require.Contains(t, g.Tasks, StatusDone)
	assert.NotContains(t, g.Tasks, StatusInProgress)

	assert.Equal(t, []*Task{newer, older}, g.Tasks[StatusTodo][PriorityHigh])
	assert.Empty(t, g.Tasks[StatusTodo][PriorityLow])
	assert.NotNil(t, g.Tasks[StatusTodo][PriorityMedium])
	assert.Equal(t, 2, g.TodoTasks)
	assert.Equal(t, 1, g.DoneTasks)
	assert.Equal(t, 3, g.TotalTasks)
}
