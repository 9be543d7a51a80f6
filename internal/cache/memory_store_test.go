package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(t *testing.T, s *MemoryStore)
	}{
		{
			name: "get returns a copy",
			run: func(t *testing.T, s *MemoryStore) {
				require.NoError(t, s.Set(ctx, "k", []byte("abc"), 0))

				v, ok, err := s.Get(ctx, "k")
				require.NoError(t, err)
				require.True(t, ok)
				v[0] = 'x'

				again, _, _ := s.Get(ctx, "k")
				assert.Equal(t, "abc", string(again))
			},
		},
		{
			name: "missing key",
			run: func(t *testing.T, s *MemoryStore) {
				_, ok, err := s.Get(ctx, "nope")
				require.NoError(t, err)
				assert.False(t, ok)
			},
		},
		{
			name: "expired entry is dropped",
			run: func(t *testing.T, s *MemoryStore) {
				now := time.Now()
				s.now = func() time.Time { return now }
				require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Second))

				now = now.Add(2 * time.Second)
				_, ok, _ := s.Get(ctx, "k")
				assert.False(t, ok)
				assert.Equal(t, 0, s.Len())
			},
		},
		{
			name: "delete prefix",
			run: func(t *testing.T, s *MemoryStore) {
				for _, key := range []string{"tasks_p1", "tasks_p1_grouped", "tasks_user_u1", "task_t1"} {
					require.NoError(t, s.Set(ctx, key, []byte("1"), 0))
				}

				require.NoError(t, s.DeletePrefix(ctx, "tasks_p1"))

				assert.Equal(t, 2, s.Len())
				_, ok, _ := s.Get(ctx, "task_t1")
				assert.True(t, ok)
			},
		},
		{
			name: "bounded by max entries",
			run: func(t *testing.T, s *MemoryStore) {
				for i := 0; i < 5; i++ {
					require.NoError(t, s.Set(ctx, UserSearchKey("q", 10, i), []byte("[]"), 0))
				}
				assert.Equal(t, 3, s.Len())

				_, ok, _ := s.Get(ctx, UserSearchKey("q", 10, 0))
				assert.False(t, ok)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewMemoryStore(3)
			require.NoError(t, err)
			tt.run(t, s)
		})
	}
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `users_a\*b\?`, escapeGlob("users_a*b?"))
	assert.Equal(t, `users_\[x\]`, escapeGlob("users_[x]"))
}
