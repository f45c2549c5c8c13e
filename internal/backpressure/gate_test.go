package backpressure

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fill occupies every slot and queue position of g with tasks blocked on
// release, returning once they are all in place.
func fill(t *testing.T, g *Gate, slots, queue int, release <-chan struct{}) *sync.WaitGroup {
	t.Helper()
	var wg sync.WaitGroup
	block := func(context.Context) error {
		<-release
		return nil
	}
	for i := 0; i < slots; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Do(context.Background(), block))
		}()
	}
	require.Eventually(t, func() bool { return g.Stats().InFlight == int64(slots) }, time.Second, time.Millisecond)
	for i := 0; i < queue; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Do(context.Background(), block))
		}()
	}
	require.Eventually(t, func() bool { return g.Stats().Queued == int64(queue) }, time.Second, time.Millisecond)
	return &wg
}

func TestGate_RejectsBeyondCapacityPlusQueue(t *testing.T) {
	const c, q = 3, 2
	g := NewGate(Options{MaxConcurrent: c, QueueDepth: q, QueueTimeout: 5 * time.Second})
	release := make(chan struct{})
	wg := fill(t, g, c, q, release)

	start := time.Now()
	err := g.Do(context.Background(), func(context.Context) error {
		t.Fatal("the (C+Q+1)-th task must not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Less(t, time.Since(start), time.Second, "a full queue rejects without waiting")

	s := g.Stats()
	assert.Equal(t, uint64(1), s.Rejected)
	assert.Equal(t, 1.0, s.Utilization)

	close(release)
	wg.Wait()
	s = g.Stats()
	assert.Equal(t, uint64(c+q), s.Admitted)
	assert.Zero(t, s.InFlight)
	assert.Zero(t, s.Queued)
}

func TestGate_QueueTimeout(t *testing.T) {
	g := NewGate(Options{MaxConcurrent: 1, QueueDepth: 4, QueueTimeout: 30 * time.Millisecond})
	release := make(chan struct{})
	wg := fill(t, g, 1, 0, release)
	defer func() {
		close(release)
		wg.Wait()
	}()

	err := g.Do(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, uint64(1), g.Stats().TimedOut)
}

func TestGate_CallerDeadlineWhileQueued(t *testing.T) {
	g := NewGate(Options{MaxConcurrent: 1, QueueDepth: 4, QueueTimeout: time.Minute})
	release := make(chan struct{})
	wg := fill(t, g, 1, 0, release)
	defer func() {
		close(release)
		wg.Wait()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGate_QueuedTaskRunsWhenSlotFrees(t *testing.T) {
	g := NewGate(Options{MaxConcurrent: 1, QueueDepth: 1, QueueTimeout: time.Second})
	release := make(chan struct{})
	wg := fill(t, g, 1, 0, release)

	done := make(chan string, 1)
	go func() {
		v, err := Run(context.Background(), g, func(context.Context) (string, error) { return "ran", nil })
		assert.NoError(t, err)
		done <- v
	}()
	require.Eventually(t, func() bool { return g.Stats().Queued == 1 }, time.Second, time.Millisecond)

	close(release)
	wg.Wait()
	assert.Equal(t, "ran", <-done)
}

func TestGate_TaskErrorPassesThrough(t *testing.T) {
	g := NewGate(Options{MaxConcurrent: 2})
	boom := errors.New("boom")
	err := g.Do(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrCapacityExceeded))

	_, err = Run(context.Background(), g, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, g.Stats().InFlight)
}

func TestGate_NoQueueRejectsImmediately(t *testing.T) {
	g := NewGate(Options{MaxConcurrent: 1, QueueDepth: 0})
	release := make(chan struct{})
	wg := fill(t, g, 1, 0, release)
	err := g.Do(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	close(release)
	wg.Wait()
}
