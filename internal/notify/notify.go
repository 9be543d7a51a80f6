package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreated Action = "CREATED"
	ActionUpdated Action = "UPDATED"
	ActionDeleted Action = "DELETED"
)

// Event describes a committed mutation. UserID is the user the activity is about, which is
// not always the actor (an invitation is about the invitee).
type Event struct {
	ActorID   uuid.UUID  `json:"actor_id"`
	UserID    uuid.UUID  `json:"user_id"`
	ProjectID uuid.UUID  `json:"project_id"`
	TaskID    *uuid.UUID `json:"task_id,omitempty"`
	Title     string     `json:"title"`
	Details   string     `json:"details"`
	Action    Action     `json:"action"`
	CreatedAt time.Time  `json:"created_at"`
}

// Notifier is informed after a mutation committed. Implementations log their own failures;
// a failed notification never undoes the mutation.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Fanout delivers every event to each notifier in order.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	// The request may be gone by now; delivery still happens.
	ctx = context.WithoutCancel(ctx)
	for _, n := range f {
		n.Notify(ctx, event)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, Event) {}
