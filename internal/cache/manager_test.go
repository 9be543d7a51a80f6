package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var errNoItems = errors.New("no items")

func newTestManager(t *testing.T) (*Manager, *MemoryStore) {
	t.Helper()
	store, err := NewMemoryStore(100)
	require.NoError(t, err)
	return NewManager(store, Options{}), store
}

// failingStore wraps a MemoryStore and fails deletes on demand.
type failingStore struct {
	*MemoryStore
	failDelete bool
}

func (s *failingStore) Delete(ctx context.Context, keys ...string) error {
	if s.failDelete {
		return errors.New("connection refused")
	}
	return s.MemoryStore.Delete(ctx, keys...)
}

type recordingBroadcaster struct {
	keys [][]string
	err  error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, keys []string) error {
	b.keys = append(b.keys, keys)
	return b.err
}

func TestRead_LoadsOnceUntilInvalidated(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var calls int32
	loader := func(context.Context) (item, error) {
		atomic.AddInt32(&calls, 1)
		return item{ID: "p1", Name: "alpha"}, nil
	}

	first, err := Read(ctx, m, ProjectKey("p1"), loader)
	require.NoError(t, err)
	second, err := Read(ctx, m, ProjectKey("p1"), loader)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = Mutate(ctx, m, func(context.Context) (struct{}, error) {
		return struct{}{}, nil
	}, func(struct{}) []string {
		return []string{ProjectKey("p1")}
	})
	require.NoError(t, err)

	_, err = Read(ctx, m, ProjectKey("p1"), loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestReadList_EmptyIsNotFoundAndNotCached(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	var calls int32
	empty := func(context.Context) ([]item, error) {
		atomic.AddInt32(&calls, 1)
		return nil, nil
	}

	_, err := ReadList(ctx, m, UserProjectsKey("u1"), empty, errNoItems)
	assert.ErrorIs(t, err, errNoItems)
	_, err = ReadList(ctx, m, UserProjectsKey("u1"), empty, errNoItems)
	assert.ErrorIs(t, err, errNoItems)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, store.Len())

	items, err := ReadList(ctx, m, UserProjectsKey("u1"), func(context.Context) ([]item, error) {
		return []item{{ID: "p1"}}, nil
	}, errNoItems)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, store.Len())
}

func TestMutate_OperationFailureSkipsInvalidation(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, TaskKey("t1"), []byte(`{"id":"t1"}`), 0))

	opErr := errors.New("unique violation")
	_, err := Mutate(ctx, m, func(context.Context) (int, error) {
		return 0, opErr
	}, func(int) []string {
		return []string{TaskKey("t1")}
	})
	assert.ErrorIs(t, err, opErr)

	_, ok, _ := store.Get(ctx, TaskKey("t1"))
	assert.True(t, ok)
}

func TestMutate_InvalidationFailureIsSurfaced(t *testing.T) {
	mem, err := NewMemoryStore(10)
	require.NoError(t, err)
	store := &failingStore{MemoryStore: mem, failDelete: true}
	m := NewManager(store, Options{})

	result, err := Mutate(context.Background(), m, func(context.Context) (string, error) {
		return "committed", nil
	}, func(string) []string {
		return []string{ProjectKey("p1")}
	})

	assert.Equal(t, "committed", result)
	assert.ErrorIs(t, err, ErrInvalidation)
}

func TestInvalidate_SurvivesCancelledCaller(t *testing.T) {
	m, store := newTestManager(t)

	require.NoError(t, store.Set(context.Background(), ProjectKey("p1"), []byte(`{}`), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, m.Invalidate(ctx, ProjectKey("p1")))

	_, ok, _ := store.Get(context.Background(), ProjectKey("p1"))
	assert.False(t, ok)
}

func TestInvalidate_Pattern(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	for _, key := range []string{UserSearchKey("al", 10, 0), UserSearchKey("", 10, 10), ProjectUsersKey("p1"), UserKey("u1")} {
		require.NoError(t, store.Set(ctx, key, []byte(`[]`), 0))
	}

	require.NoError(t, m.Invalidate(ctx, UserSearchPattern()))

	assert.Equal(t, 1, store.Len())
	_, ok, _ := store.Get(ctx, UserKey("u1"))
	assert.True(t, ok)
}

func TestInvalidate_Broadcasts(t *testing.T) {
	m, _ := newTestManager(t)
	b := &recordingBroadcaster{}
	m.SetBroadcaster(b)

	require.NoError(t, m.Invalidate(context.Background(), TaskKey("t1"), TaskKey("t1"), "", ProjectTasksKey("p1")))

	require.Len(t, b.keys, 1)
	assert.Equal(t, []string{TaskKey("t1"), ProjectTasksKey("p1")}, b.keys[0])

	b.err = errors.New("listener down")
	err := m.Invalidate(context.Background(), TaskKey("t2"))
	assert.ErrorIs(t, err, ErrInvalidation)
}

func TestRead_SkipsWriteBackWhenInvalidatedDuringLoad(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	value, err := Read(ctx, m, ProjectKey("p1"), func(ctx context.Context) (item, error) {
		// A mutation commits and invalidates while the loader still holds the old row.
		require.NoError(t, m.Invalidate(ctx, ProjectKey("p1")))
		return item{ID: "p1", Name: "stale"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", value.Name)

	_, ok, _ := store.Get(ctx, ProjectKey("p1"))
	assert.False(t, ok)
}

func TestRead_TTLExpires(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	var calls int32
	loader := func(context.Context) ([]item, error) {
		atomic.AddInt32(&calls, 1)
		return []item{{ID: "u1"}}, nil
	}

	_, err := Read(ctx, m, UserSearchKey("a", 10, 0), loader, WithTTL(time.Minute))
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = Read(ctx, m, UserSearchKey("a", 10, 0), loader, WithTTL(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRead_StoreErrorPropagates(t *testing.T) {
	m := NewManager(&brokenStore{}, Options{})

	_, err := Read(context.Background(), m, UserKey("u1"), func(context.Context) (item, error) {
		t.Fatal("loader must not run when the cache is unreachable")
		return item{}, nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidation)
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("i/o timeout")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (brokenStore) Delete(context.Context, ...string) error { return nil }
func (brokenStore) DeletePrefix(context.Context, string) error { return nil }
