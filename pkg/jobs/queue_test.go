package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		runs := len(attempts)
		mu.Unlock()
		if runs < 3 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1", Type: "noop"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never completed")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2}, attempts)
}

func TestQueueAbandonsAfterMaxRetries(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	handler := func(ctx context.Context, job Job) error {
		mu.Lock()
		runs++
		mu.Unlock()
		return errors.New("permanent failure")
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 3
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, runs)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{ID: "j1"}))
}
