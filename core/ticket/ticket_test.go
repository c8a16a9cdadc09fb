package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paridhisingla/unisync/core"
)

type memSequencer struct {
	mu   sync.Mutex
	vals map[string]int64
	err  error
}

func (s *memSequencer) NextValue(_ context.Context, name string, _ ...core.DBExecutor) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vals == nil {
		s.vals = make(map[string]int64)
	}
	s.vals[name]++
	return s.vals[name], nil
}

func TestFormat(t *testing.T) {
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		seq  int64
		want string
	}{
		{seq: 1, want: "CMP-202403-0001"},
		{seq: 42, want: "CMP-202403-0042"},
		{seq: 9999, want: "CMP-202403-9999"},
		{seq: 12345, want: "CMP-202403-12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.seq, at))
		assert.True(t, Valid(tt.want), tt.want)
	}
	assert.Equal(t, "CMP-202412-0001", Format(1, time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)))
}

func TestValid(t *testing.T) {
	for _, id := range []string{"", "CMP-2024-0001", "CMP-202413-0001", "XYZ-202401-0001", "CMP-202401-01"} {
		assert.False(t, Valid(id), id)
	}
}

func TestGenerator_Next(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	t.Run("sequential", func(t *testing.T) {
		gen := NewGenerator(&memSequencer{})
		first, err := gen.Next(ctx, at)
		require.NoError(t, err)
		second, err := gen.Next(ctx, at)
		require.NoError(t, err)
		assert.Equal(t, "CMP-202406-0001", first)
		assert.Equal(t, "CMP-202406-0002", second)
	})

	t.Run("concurrent draws are unique", func(t *testing.T) {
		gen := NewGenerator(&memSequencer{})
		ids := make(chan string, 100)
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, err := gen.Next(ctx, at)
				assert.NoError(t, err)
				ids <- id
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			assert.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, 100)
	})

	t.Run("sequencer failure", func(t *testing.T) {
		gen := NewGenerator(&memSequencer{err: errors.New("boom")})
		id, err := gen.Next(ctx, at)
		assert.Error(t, err)
		assert.Empty(t, id)
	})
}
