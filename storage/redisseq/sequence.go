// Package redisseq implements ticket sequences on Redis counters.
package redisseq

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/ticket"
)

const keyPrefix = "unisync:seq:"

type incrementer interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Sequencer draws sequence values with INCR, so values are unique across every API instance sharing the Redis server.
type Sequencer struct {
	rdb incrementer
}

var _ ticket.Sequencer = (*Sequencer)(nil)

func NewSequencer(rdb *redis.Client) *Sequencer {
	return &Sequencer{rdb: rdb}
}

// NextValue increments the named sequence and returns its new value. The first value is 1.
// The exec argument is ignored: Redis counters are not part of database transactions.
func (s *Sequencer) NextValue(ctx context.Context, name string, _ ...core.DBExecutor) (int64, error) {
	val, err := s.rdb.Incr(ctx, keyPrefix+name).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incrementing sequence %s", name)
	}
	return val, nil
}

// Seed starts the named sequence at the largest of floors unless the counter already exists,
// so the next value follows the ticket numbers handed out before Redis took over.
// It reports whether the counter was set.
func (s *Sequencer) Seed(ctx context.Context, name string, floors ...int64) (bool, error) {
	var floor int64
	for _, f := range floors {
		if f > floor {
			floor = f
		}
	}
	ok, err := s.rdb.SetNX(ctx, keyPrefix+name, floor, 0).Result()
	if err != nil {
		return false, errors.Wrapf(err, "seeding sequence %s", name)
	}
	return ok, nil
}

// NewClient connects to the configured Redis server.
func NewClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}
