package redisseq

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "incr", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key]++
	cmd.SetVal(f.values[key])
	return cmd
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx, "setnx", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		cmd.SetVal(false)
		return cmd
	}
	f.values[key] = value.(int64)
	cmd.SetVal(true)
	return cmd
}

func TestSequencer_NextValue(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: make(map[string]int64)}
	seq := &Sequencer{rdb: fake}

	for want := int64(1); want <= 3; want++ {
		got, err := seq.NextValue(ctx, "complaints")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := seq.NextValue(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	assert.Equal(t, int64(3), fake.values[keyPrefix+"complaints"])
}

func TestSequencer_NextValue_Concurrent(t *testing.T) {
	ctx := context.Background()
	seq := &Sequencer{rdb: &fakeRedis{values: make(map[string]int64)}}

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := seq.NextValue(ctx, "complaints")
			assert.NoError(t, err)
			mu.Lock()
			seen[val] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestSequencer_NextValue_Error(t *testing.T) {
	seq := &Sequencer{rdb: &fakeRedis{err: errors.New("connection refused")}}
	_, err := seq.NextValue(context.Background(), "complaints")
	assert.EqualError(t, err, "incrementing sequence complaints: connection refused")
}

func TestSequencer_Seed(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{values: make(map[string]int64)}
	seq := &Sequencer{rdb: fake}

	// three tickets were issued from the database sequence before the switch
	ok, err := seq.Seed(ctx, "complaint", 2, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := seq.NextValue(ctx, "complaint")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	// an existing counter is left alone
	ok, err = seq.Seed(ctx, "complaint", 1)
	require.NoError(t, err)
	assert.False(t, ok)
	got, err = seq.NextValue(ctx, "complaint")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)

	ok, err = seq.Seed(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = seq.NextValue(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	_, err = (&Sequencer{rdb: &fakeRedis{err: errors.New("connection refused")}}).Seed(ctx, "complaint", 1)
	assert.EqualError(t, err, "seeding sequence complaint: connection refused")
}
