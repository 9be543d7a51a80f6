package task

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/curaious/teamboard/internal/cache"
	"github.com/curaious/teamboard/internal/notify"
	"github.com/curaious/teamboard/internal/perrors"
	"github.com/google/uuid"
)

var ErrNoTasks = perrors.NotFound("no tasks found")

// TaskService contains business logic for tasks
type TaskService struct {
	repo     Repository
	cache    *cache.Manager
	notifier notify.Notifier
}

// NewTaskService constructs a new TaskService
func NewTaskService(repo Repository, cache *cache.Manager, notifier notify.Notifier) *TaskService {
	return &TaskService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
	}
}

// taskKeys lists the cached views embedding t. previous is the assignee the write replaced.
func taskKeys(t *Task, previous *uuid.UUID) []string {
	pid := t.ProjectID.String()
	keys := cache.Keys{}.Add(
		cache.TaskKey(t.ID.String()),
		cache.ProjectTasksKey(pid),
		cache.GroupedTasksKey(pid),
		cache.ProjectKey(pid),
	)

	for _, assignee := range []*uuid.UUID{previous, t.AssignedToUserID} {
		if assignee != nil {
			keys = keys.Add(cache.UserTasksKey(assignee.String()))
		}
	}

	return keys
}

// Create adds a task to a project. Status defaults to TODO and priority to LOW.
func (s *TaskService) Create(ctx context.Context, actor, projectID uuid.UUID, req *CreateTaskRequest) (*Task, error) {
	t := &Task{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Title:           req.Title,
		Description:     req.Description,
		DueDate:         req.DueDate,
		Status:          StatusTodo,
		Priority:        PriorityLow,
		CreatedByUserID: actor,
	}

	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if t.Status == StatusDone {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}

	if req.AssignedToUserID != nil {
		if err := s.checkAssignee(ctx, *req.AssignedToUserID, projectID); err != nil {
			return nil, err
		}
		t.AssignedToUserID = req.AssignedToUserID
		t.AssignedByUserID = &actor
	}

	created, err := cache.Mutate(ctx, s.cache, func(ctx context.Context) (*Task, error) {
		return s.repo.Create(ctx, t)
	}, func(t *Task) []string {
		return taskKeys(t, nil)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, actor, created, fmt.Sprintf("Task with title: %s was created", created.Title), notify.ActionCreated)
	return created, nil
}

// Get returns a task by ID, archived and deleted tasks included.
func (s *TaskService) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return cache.Read(ctx, s.cache, cache.TaskKey(id.String()), func(ctx context.Context) (*Task, error) {
		return s.repo.GetByID(ctx, id)
	})
}

func (s *TaskService) Update(ctx context.Context, actor, id uuid.UUID, req *UpdateTaskRequest) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status != nil || req.Priority != nil {
		if err := checkLive(current, "update status or priority of"); err != nil {
			return nil, err
		}
	}

	return s.write(ctx, actor, "Task updated", notify.ActionUpdated, keepsAssignee(func(ctx context.Context) (*Task, error) {
		return s.repo.Update(ctx, id, req)
	}))
}

func (s *TaskService) UpdateStatus(ctx context.Context, actor, id uuid.UUID, status Status) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := checkLive(current, "update status of"); err != nil {
		return nil, err
	}

	return s.write(ctx, actor, fmt.Sprintf("Task status changed to %s", status), notify.ActionUpdated, keepsAssignee(func(ctx context.Context) (*Task, error) {
		return s.repo.SetStatus(ctx, id, status)
	}))
}

func (s *TaskService) UpdatePriority(ctx context.Context, actor, id uuid.UUID, priority Priority) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := checkLive(current, "update priority of"); err != nil {
		return nil, err
	}

	return s.write(ctx, actor, fmt.Sprintf("Task priority changed to %s", priority), notify.ActionUpdated, keepsAssignee(func(ctx context.Context) (*Task, error) {
		return s.repo.SetPriority(ctx, id, priority)
	}))
}

// Assign hands the task to an accepted member of its project.
func (s *TaskService) Assign(ctx context.Context, actor, id, assignee uuid.UUID) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.IsDeleted {
		return nil, perrors.BadRequest("cannot assign a deleted task")
	}

	if err := s.checkAssignee(ctx, assignee, current.ProjectID); err != nil {
		return nil, err
	}

	return s.write(ctx, actor, fmt.Sprintf("Task assigned to %s", assignee), notify.ActionUpdated, func(ctx context.Context) (*Reassignment, error) {
		return s.repo.Assign(ctx, id, assignee, actor)
	})
}

func (s *TaskService) Archive(ctx context.Context, actor, id uuid.UUID) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := checkLive(current, "archive"); err != nil {
		return nil, err
	}

	return s.write(ctx, actor, "Task archived", notify.ActionUpdated, keepsAssignee(func(ctx context.Context) (*Task, error) {
		return s.repo.Archive(ctx, id, actor)
	}))
}

// Delete soft-deletes the task and clears its assignment.
func (s *TaskService) Delete(ctx context.Context, actor, id uuid.UUID) (*Task, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.IsDeleted {
		return nil, perrors.BadRequest("task is already deleted")
	}

	return s.write(ctx, actor, "Task deleted", notify.ActionDeleted, func(ctx context.Context) (*Reassignment, error) {
		return s.repo.SoftDelete(ctx, id, actor)
	})
}

// ProjectSummary returns the live tasks of a project with per-status counts.
func (s *TaskService) ProjectSummary(ctx context.Context, projectID uuid.UUID) (*Summary, error) {
	return cache.Read(ctx, s.cache, cache.ProjectTasksKey(projectID.String()), func(ctx context.Context) (*Summary, error) {
		tasks, err := s.liveTasks(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return summarize(tasks), nil
	})
}

// Grouped returns the live tasks of a project by status and priority.
func (s *TaskService) Grouped(ctx context.Context, projectID uuid.UUID) (*Grouped, error) {
	return cache.Read(ctx, s.cache, cache.GroupedTasksKey(projectID.String()), func(ctx context.Context) (*Grouped, error) {
		tasks, err := s.liveTasks(ctx, projectID)
		if err != nil {
			return nil, err
		}
		return group(tasks), nil
	})
}

// UserTasks returns the tasks assigned to a user across projects.
func (s *TaskService) UserTasks(ctx context.Context, userID uuid.UUID) ([]*UserTask, error) {
	return cache.ReadList(ctx, s.cache, cache.UserTasksKey(userID.String()), func(ctx context.Context) ([]*UserTask, error) {
		return s.repo.ListByAssignee(ctx, userID)
	}, ErrNoTasks)
}

func (s *TaskService) liveTasks(ctx context.Context, projectID uuid.UUID) ([]*Task, error) {
	tasks, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}
	return tasks, nil
}

func (s *TaskService) write(ctx context.Context, actor uuid.UUID, title string, action notify.Action, op func(context.Context) (*Reassignment, error)) (*Task, error) {
	written, err := cache.Mutate(ctx, s.cache, op, func(r *Reassignment) []string {
		return taskKeys(&r.Task, r.PreviousAssigneeID)
	})
	if err != nil {
		return nil, err
	}

	updated := &written.Task
	s.notify(ctx, actor, updated, title, action)
	return updated, nil
}

// keepsAssignee wraps a write that never touches the assignee.
func keepsAssignee(op func(context.Context) (*Task, error)) func(context.Context) (*Reassignment, error) {
	return func(ctx context.Context) (*Reassignment, error) {
		t, err := op(ctx)
		if err != nil {
			return nil, err
		}
		return &Reassignment{Task: *t, PreviousAssigneeID: t.AssignedToUserID}, nil
	}
}

func (s *TaskService) checkAssignee(ctx context.Context, userID, projectID uuid.UUID) error {
	ok, err := s.repo.IsAcceptedMember(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return perrors.BadRequest("assignee is not a member of the project")
	}
	return nil
}

func (s *TaskService) notify(ctx context.Context, actor uuid.UUID, t *Task, title string, action notify.Action) {
	taskID := t.ID
	s.notifier.Notify(ctx, notify.Event{
		ActorID:   actor,
		UserID:    actor,
		ProjectID: t.ProjectID,
		TaskID:    &taskID,
		Title:     title,
		Details:   fmt.Sprintf("%s: %s", title, t.Description),
		Action:    action,
	})
}

func checkLive(t *Task, verb string) error {
	if t.IsDeleted || t.IsArchived {
		return perrors.BadRequest("cannot %s a deleted or archived task", verb)
	}
	return nil
}

func summarize(tasks []*Task) *Summary {
	s := &Summary{Tasks: tasks, TotalTasks: len(tasks)}
	s.TodoTasks, s.InProgressTasks, s.DoneTasks = countByStatus(tasks)
	return s
}

func group(tasks []*Task) *Grouped {
	g := &Grouped{
		Tasks:      map[Status]map[Priority][]*Task{},
		TotalTasks: len(tasks),
	}
	g.TodoTasks, g.InProgressTasks, g.DoneTasks = countByStatus(tasks)

	for _, t := range tasks {
		byPriority, ok := g.Tasks[t.Status]
		if !ok {
			byPriority = make(map[Priority][]*Task, len(priorities))
			for _, p := range priorities {
				byPriority[p] = []*Task{}
			}
			g.Tasks[t.Status] = byPriority
		}
		byPriority[t.Priority] = append(byPriority[t.Priority], t)
	}

	for _, byPriority := range g.Tasks {
		for _, list := range byPriority {
			slices.SortStableFunc(list, func(a, b *Task) int {
				return b.CreatedAt.Compare(a.CreatedAt)
			})
		}
	}

	return g
}

func countByStatus(tasks []*Task) (todo, inProgress, done int) {
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			todo++
		case StatusInProgress:
			inProgress++
		case StatusDone:
			done++
		}
	}
	return todo, inProgress, done
}
