package changefeed

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter answers INCR and GET from a map, like a single Redis server.
type fakeCounter struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{values: map[string]int64{}}
}

func (c *fakeCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewIntResult(0, c.err)
	}
	c.values[key]++
	return redis.NewIntResult(c.values[key], nil)
}

func (c *fakeCounter) Get(_ context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return redis.NewStringResult("", c.err)
	}
	v, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(strconv.FormatInt(v, 10), nil)
}

func TestRedisVersion_MissingKeyIsZero(t *testing.T) {
	v := NewRedisVersion(newFakeCounter(), "")

	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got)

	n, err := v.Incr(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestFeed_SharedVersionSeenAcrossInstances(t *testing.T) {
	ctx := context.Background()
	redisLike := newFakeCounter()
	a := NewFeed(WithSharedVersion(NewRedisVersion(redisLike, DefaultVersionKey)))
	b := NewFeed(WithSharedVersion(NewRedisVersion(redisLike, DefaultVersionKey)))

	before, err := a.CurrentVersion(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Notify(ctx, Change{Topic: TopicInvoiceCreated, EntityID: 9}))

	after, err := a.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)
	assert.Equal(t, uint64(0), a.Version())

	// a fresh process starts from the shared counter, not from zero
	restarted := NewFeed(WithSharedVersion(NewRedisVersion(redisLike, DefaultVersionKey)))
	got, err := restarted.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, got)
}

func TestFeed_SharedVersionFailure(t *testing.T) {
	ctx := context.Background()
	redisLike := newFakeCounter()
	redisLike.err = errors.New("connection refused")
	feed := NewFeed(WithSharedVersion(NewRedisVersion(redisLike, "")))
	changes, cancel := feed.Subscribe(1)
	defer cancel()

	err := feed.Notify(ctx, Change{Topic: TopicExpenseChanged})
	assert.Error(t, err)
	assert.Len(t, changes, 1)
	assert.Equal(t, uint64(1), feed.Version())

	_, err = feed.CurrentVersion(ctx)
	assert.Error(t, err)
}
