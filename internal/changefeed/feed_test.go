package changefeed

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_NotifyBumpsVersion(t *testing.T) {
	feed := NewFeed()
	assert.Equal(t, uint64(0), feed.Version())

	require.NoError(t, feed.Notify(context.Background(), Change{Topic: TopicInvoiceCreated, EntityID: 1}))
	require.NoError(t, feed.Notify(context.Background(), Change{Topic: TopicProductChanged, EntityID: 2}))

	assert.Equal(t, uint64(2), feed.Version())

	current, err := feed.CurrentVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), current)
}

func TestFeed_SubscribeReceivesChanges(t *testing.T) {
	feed := NewFeed()
	changes, cancel := feed.Subscribe(4)
	defer cancel()

	require.NoError(t, feed.Notify(context.Background(), Change{Topic: TopicExpenseChanged, EntityID: 7}))

	ch := <-changes
	assert.Equal(t, TopicExpenseChanged, ch.Topic)
	assert.Equal(t, uint(7), ch.EntityID)
	assert.Equal(t, uint64(1), ch.Version)
	assert.False(t, ch.At.IsZero())
}

func TestFeed_SlowSubscriberDropsButVersionAdvances(t *testing.T) {
	feed := NewFeed()
	changes, cancel := feed.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, feed.Notify(context.Background(), Change{Topic: TopicInvoiceCreated}))
	}

	assert.Len(t, changes, 1)
	assert.Equal(t, uint64(3), feed.Version())
}

func TestFeed_CancelClosesChannel(t *testing.T) {
	feed := NewFeed()
	changes, cancel := feed.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-changes
	assert.False(t, ok)
	assert.NoError(t, feed.Notify(context.Background(), Change{Topic: TopicInvoiceCreated}))
}

func TestFeed_ConcurrentNotify(t *testing.T) {
	feed := NewFeed()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = feed.Notify(context.Background(), Change{Topic: TopicInvoiceCreated})
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), feed.Version())
}
