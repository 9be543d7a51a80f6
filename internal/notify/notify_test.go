package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
	ctxErr []error
}

func (r *recorder) Notify(ctx context.Context, event Event) {
	r.events = append(r.events, event)
	r.ctxErr = append(r.ctxErr, ctx.Err())
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Fanout{a, Discard{}, b}.Notify(ctx, Event{ProjectID: uuid.New(), Action: ActionCreated})

	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)
	assert.False(t, a.events[0].CreatedAt.IsZero())
	assert.NoError(t, a.ctxErr[0])
}
