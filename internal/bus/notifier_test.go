package bus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNotifier_PublishReachesAllSubscribers(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	var wg sync.WaitGroup
	var counts [4]int32

	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		n.Subscribe(func() {
			atomic.AddInt32(&counts[i], 1)
			wg.Done()
		})
	}

	n.Publish()
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.Equal(t, int32(1), atomic.LoadInt32(&counts[i]))
	}
}

func TestNotifier_NoDeliveryAfterUnsubscribe(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	var calls int32
	sub := n.Subscribe(func() {
		atomic.AddInt32(&calls, 1)
	})

	sub.Unsubscribe()
	n.Publish()

	// Give any stray dispatch goroutine a chance to fire before checking.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, n.SubscriberCount())
}

func TestNotifier_UnsubscribeWaitsForInFlightDelivery(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	started := make(chan struct{})
	release := make(chan struct{})
	var done atomic.Bool

	sub := n.Subscribe(func() {
		close(started)
		<-release
		done.Store(true)
	})

	n.Publish()
	<-started

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	sub.Unsubscribe()
	assert.True(t, done.Load(), "Unsubscribe returned while handler was still running")
}

func TestNotifier_PublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	block := make(chan struct{})
	n.Subscribe(func() {
		<-block
	})

	startedAt := time.Now()
	n.Publish()
	elapsed := time.Since(startedAt)
	close(block)

	assert.Less(t, elapsed, 100*time.Millisecond)
}

func TestNotifier_NoReplayForLateSubscribers(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	n.Publish()

	var calls int32
	n.Subscribe(func() {
		atomic.AddInt32(&calls, 1)
	})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNotifier_ConcurrentPublishAndSubscribe(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	n := NewNotifier(logger)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := n.Subscribe(func() {})
			sub.Unsubscribe()
		}()
		go func() {
			defer wg.Done()
			n.Publish()
		}()
	}
	wg.Wait()

	require.Equal(t, 0, n.SubscriberCount())
}
