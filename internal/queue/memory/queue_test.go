package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-crawler/internal/crawler"
	"github.com/JakeFAU/seo-crawler/internal/queue"
)

func item(id string) queue.Item {
	return queue.Item{Job: crawler.CrawlJob{ID: id}, EnqueuedAt: time.Now()}
}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan queue.Item, 1)
	errCh := make(chan error, 1)

	go func() {
		got, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- got
	}()

	require.NoError(t, q.Enqueue(context.Background(), item("job-1")))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		require.Equal(t, "job-1", got.Job.ID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	require.NoError(t, q.Enqueue(context.Background(), item("primed")))
	err = q.Enqueue(ctx, item("overflow"))
	require.EqualError(t, err, "enqueue canceled: context canceled")
	require.Equal(t, 1, q.Len())
}

func TestQueueCloseDrainsThenReportsClosed(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), item("a")))
	require.NoError(t, q.Enqueue(context.Background(), item("b")))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), item("c")), queue.ErrClosed)

	first, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	second, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, []string{first.Job.ID, second.Job.ID})

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, queue.ErrClosed)
}

func TestQueueCloseUnblocksWaiters(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, queue.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock on close")
	}
}
