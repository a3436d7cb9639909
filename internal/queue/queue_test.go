package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dantte-lp/goreflector/internal/queue"
)

// TestMessageQueueFIFO checks that a single-producer, single-consumer
// sequence is observed in the same order it was pushed.
func TestMessageQueueFIFO(t *testing.T) {
	t.Parallel()

	q := queue.NewMessage()
	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	for i := 1; i <= 5; i++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

// TestDataQueueOverflow checks that a capacity-4 data queue receiving 7
// pushes before any pop retains only the first 4 items, dropped=3, and
// further pops report empty.
func TestDataQueueOverflow(t *testing.T) {
	t.Parallel()

	q := queue.NewData(4)
	for i := 1; i <= 7; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	assert.EqualValues(t, 4, stats.TotalReceived)
	assert.EqualValues(t, 3, stats.Dropped)

	for i := 1; i <= 4; i++ {
		got, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, got)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
}

// TestDataQueueSingleDropOnOverflow checks that one push against a full
// queue drops exactly one item and leaves total_received unchanged.
func TestDataQueueSingleDropOnOverflow(t *testing.T) {
	t.Parallel()

	q := queue.NewData(1)
	q.Push("a")
	before := q.Stats()
	q.Push("b")
	after := q.Stats()

	assert.EqualValues(t, before.Dropped+1, after.Dropped)
	assert.EqualValues(t, before.TotalReceived, after.TotalReceived)
	assert.Equal(t, 1, q.Len())
}

func TestGroupWaitWakesOnPush(t *testing.T) {
	t.Parallel()

	dq := queue.NewData(4)
	g := queue.NewGroup()
	g.Register(dq)

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	dq.Push("x")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up after push")
	}
}

func TestGroupTMWaitTimesOut(t *testing.T) {
	t.Parallel()

	g := queue.NewGroup()
	ok := g.TMWait(20 * time.Millisecond)
	assert.False(t, ok)
}

func TestGroupSignalWakesWithoutQueue(t *testing.T) {
	t.Parallel()

	g := queue.NewGroup()
	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	g.Signal()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait never woke up after Signal")
	}
}
