package redis

import (
	"context"
	"io"
	"linkfolio/internal/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestQueue(t *testing.T) (*QueueRepository, *miniredis.Miniredis, *testClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://"+mr.Addr()+"/0", createTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewQueueRepository(client, createTestLogger(), WithBlockTimeout(0), WithClock(clock.now)), mr, clock
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("http://localhost:6379", createTestLogger())
	assert.ErrorContains(t, err, "invalid Redis URL")
}

func TestQueue_EnqueueDequeueComplete(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.JobTypeResolvePreview, domain.ResolvePreviewPayload{
		LinkID: "abc",
		URL:    "https://example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	count, err := q.GetPendingCount(ctx, domain.JobTypeResolvePreview)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	job, err := q.Dequeue(ctx, domain.JobTypeResolvePreview)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, domain.JobStatusProcessing, job.Status)
	assert.Equal(t, "abc", job.Payload["link_id"])
	assert.Equal(t, "https://example.com", job.Payload["url"])
	require.NotNil(t, job.UpdatedAt)

	require.NoError(t, q.Complete(ctx, id))

	status := mr.HGet(jobKeyPrefix+id, "status")
	assert.Equal(t, domain.JobStatusCompleted, status)

	stats, err := q.GetQueueStats(ctx, domain.JobTypeResolvePreview)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["total_enqueued"])
	assert.Equal(t, int64(1), stats["completed"])
	assert.Equal(t, int64(0), stats["pending"])
	assert.Equal(t, int64(0), stats["processing"])
	assert.Equal(t, int64(0), stats["current_processing"])
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q, _, _ := newTestQueue(t)

	job, err := q.Dequeue(context.Background(), domain.JobTypeResolvePreview)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_DequeueIsFIFO(t *testing.T) {
	q, _, _ := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, domain.JobTypeNotifyLinkReady, domain.NotifyLinkReadyPayload{LinkID: "1"})
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, domain.JobTypeNotifyLinkReady, domain.NotifyLinkReadyPayload{LinkID: "2"})
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, domain.JobTypeNotifyLinkReady)
	require.NoError(t, err)
	assert.Equal(t, first, job.ID)

	job, err = q.Dequeue(ctx, domain.JobTypeNotifyLinkReady)
	require.NoError(t, err)
	assert.Equal(t, second, job.ID)
}

func TestQueue_FailSchedulesRetry(t *testing.T) {
	q, mr, clock := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.JobTypeResolvePreview, domain.ResolvePreviewPayload{LinkID: "abc"})
	require.NoError(t, err)
	_, err = q.Dequeue(ctx, domain.JobTypeResolvePreview)
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, id, "boom"))

	members, err := mr.ZMembers(retryKeyPrefix + domain.JobTypeResolvePreview)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, members)
	assert.Equal(t, "boom", mr.HGet(jobKeyPrefix+id, "error"))

	// Not yet due
	require.NoError(t, q.ProcessRetryJobs(ctx, domain.JobTypeResolvePreview))
	count, _ := q.GetPendingCount(ctx, domain.JobTypeResolvePreview)
	assert.Equal(t, 0, count)

	clock.t = clock.t.Add(2 * time.Second)
	require.NoError(t, q.ProcessRetryJobs(ctx, domain.JobTypeResolvePreview))
	count, _ = q.GetPendingCount(ctx, domain.JobTypeResolvePreview)
	assert.Equal(t, 1, count)

	job, err := q.Dequeue(ctx, domain.JobTypeResolvePreview)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.RetryCount)
}

func TestQueue_FailDeadLettersAfterMaxRetries(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, domain.JobTypeNotifyLinkReady, domain.NotifyLinkReadyPayload{LinkID: "abc"})
	require.NoError(t, err)

	for i := 0; i <= maxRetries; i++ {
		require.NoError(t, q.Fail(ctx, id, "still broken"))
	}

	dead, err := mr.List(deadLetterPrefix + domain.JobTypeNotifyLinkReady)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, dead)
	assert.Equal(t, domain.JobStatusFailed, mr.HGet(jobKeyPrefix+id, "status"))

	stats, err := q.GetQueueStats(ctx, domain.JobTypeNotifyLinkReady)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["failed"])
	assert.Equal(t, int64(1), stats["current_dead"])
}

func TestQueue_MissingJobData(t *testing.T) {
	q, mr, _ := newTestQueue(t)
	ctx := context.Background()

	mr.Lpush(queueKeyPrefix+domain.JobTypeResolvePreview, "ghost")

	_, err := q.Dequeue(ctx, domain.JobTypeResolvePreview)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	processing, _ := mr.List(processingPrefix + domain.JobTypeResolvePreview)
	assert.Empty(t, processing)

	assert.ErrorIs(t, q.Complete(ctx, "ghost"), domain.ErrNotFound)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 16*time.Second, backoff(5))
	assert.Equal(t, 300*time.Second, backoff(20))
}

func TestHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	assert.NoError(t, HealthCheck(context.Background(), client))
}
