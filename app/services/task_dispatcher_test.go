package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDispatcherDedupe(t *testing.T) {
	d := NewInMemoryTaskDispatcher(16)
	defer d.Close()

	ctx := context.Background()
	task := Task{ID: "message:1", Type: TaskTypeDispatchMessage, MessageID: 1}

	require.NoError(t, d.Enqueue(ctx, task, 0))
	// Duplicate first enqueue collapses into the reservation
	require.NoError(t, d.Enqueue(ctx, task, 0))
	assert.Len(t, d.Enqueued, 1)

	tasks, err := d.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-tasks:
		assert.Equal(t, task.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a task")
	}
	select {
	case got := <-tasks:
		t.Fatalf("unexpected duplicate task %s", got.ID)
	case <-time.After(50 * time.Millisecond):
	}

	// Complete releases the reservation, the next enqueue goes through
	require.NoError(t, d.Complete(ctx, task))
	require.NoError(t, d.Enqueue(ctx, task, 0))
	assert.Len(t, d.Enqueued, 2)
}

func TestInMemoryDispatcherRetryBypassesDedupe(t *testing.T) {
	d := NewInMemoryTaskDispatcher(16)
	defer d.Close()

	ctx := context.Background()
	first := Task{ID: "message:2", Type: TaskTypeDispatchMessage, MessageID: 2}
	require.NoError(t, d.Enqueue(ctx, first, 0))

	// A retry carries Attempt > 0 and must pass even though the reservation
	// is still held
	retry := first
	retry.Attempt = 1
	require.NoError(t, d.Enqueue(ctx, retry, 0))
	assert.Len(t, d.Enqueued, 2)
}

func TestInMemoryDispatcherDelay(t *testing.T) {
	d := NewInMemoryTaskDispatcher(16)
	defer d.Close()

	ctx := context.Background()
	task := Task{ID: "message:3", Type: TaskTypeDispatchMessage, MessageID: 3, Attempt: 1}
	require.NoError(t, d.Enqueue(ctx, task, 30*time.Millisecond))

	tasks, err := d.Consume(ctx)
	require.NoError(t, err)

	select {
	case <-tasks:
		t.Fatal("task delivered before its delay")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case got := <-tasks:
		assert.Equal(t, task.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("delayed task never delivered")
	}
}

func TestProviderErrorRetryable(t *testing.T) {
	assert.True(t, (&ProviderError{StatusCode: 0, Body: "dial tcp: timeout"}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 500}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 503}).Retryable())
	assert.True(t, (&ProviderError{StatusCode: 429}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 400}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 404}).Retryable())
	assert.False(t, (&ProviderError{StatusCode: 422}).Retryable())
}
