package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueRepository implements the domain.QueueRepository interface using Redis
type QueueRepository struct {
	client       *redis.Client
	logger       *slog.Logger
	blockTimeout time.Duration
	now          func() time.Time
}

// QueueOption configures a QueueRepository
type QueueOption func(*QueueRepository)

// WithBlockTimeout sets how long Dequeue waits for a job.
// Zero makes Dequeue return immediately when the queue is empty.
func WithBlockTimeout(d time.Duration) QueueOption {
	return func(r *QueueRepository) { r.blockTimeout = d }
}

// WithClock overrides the time source used for retry scheduling
func WithClock(now func() time.Time) QueueOption {
	return func(r *QueueRepository) { r.now = now }
}

// NewQueueRepository creates a new Redis queue repository
func NewQueueRepository(client *redis.Client, logger *slog.Logger, opts ...QueueOption) *QueueRepository {
	r := &QueueRepository{
		client:       client,
		logger:       logger,
		blockTimeout: time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redis key patterns
const (
	keyNamespace     = "linkfolio:"
	queueKeyPrefix   = keyNamespace + "queue:"      // queue:job_type
	jobKeyPrefix     = keyNamespace + "job:"        // job:job_id
	processingPrefix = keyNamespace + "processing:" // processing:job_type
	retryKeyPrefix   = keyNamespace + "retry:"      // retry:job_type
	deadLetterPrefix = keyNamespace + "dead:"       // dead:job_type
	statsKeyPrefix   = keyNamespace + "stats:"      // stats:job_type
)

// Job retry configuration
const (
	maxRetries        = 5
	initialBackoffSec = 1
	maxBackoffSec     = 300 // 5 minutes
	jobTTL            = 24 * time.Hour
	completedJobTTL   = 6 * time.Hour
)

// queueJob is the stored form of a job
type queueJob struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Payload    map[string]interface{} `json:"payload"`
	Status     string                 `json:"status"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  *time.Time             `json:"updated_at,omitempty"`
	RetryCount int                    `json:"retry_count"`
	MaxRetries int                    `json:"max_retries"`
	NextRetry  *time.Time             `json:"next_retry,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func (j *queueJob) toDomain() *domain.QueueJob {
	out := &domain.QueueJob{
		ID:         j.ID,
		Type:       j.Type,
		Payload:    j.Payload,
		Status:     j.Status,
		RetryCount: j.RetryCount,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
	}
	if j.UpdatedAt != nil {
		updatedAt := j.UpdatedAt.Format(time.RFC3339)
		out.UpdatedAt = &updatedAt
	}
	return out
}

// backoff returns the delay before the given retry attempt
func backoff(retryCount int) time.Duration {
	sec := math.Min(
		float64(initialBackoffSec)*math.Pow(2, float64(retryCount-1)),
		float64(maxBackoffSec),
	)
	return time.Duration(sec) * time.Second
}

func (r *QueueRepository) loadJob(ctx context.Context, jobID string) (*queueJob, error) {
	data, err := r.client.HGet(ctx, jobKeyPrefix+jobID, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job data: %w", err)
	}

	var job queueJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// saveJob queues the job hash update on pipe
func saveJob(ctx context.Context, pipe redis.Pipeliner, job *queueJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	fields := map[string]interface{}{
		"data":        string(data),
		"status":      job.Status,
		"type":        job.Type,
		"retry_count": job.RetryCount,
	}
	if job.UpdatedAt != nil {
		fields["updated_at"] = job.UpdatedAt.Unix()
	}
	if job.Error != "" {
		fields["error"] = job.Error
	}
	pipe.HSet(ctx, jobKeyPrefix+job.ID, fields)
	return nil
}

// Enqueue adds a new job to the queue
func (r *QueueRepository) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	// Round-trip the payload so workers see the same shape it was stored in
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	var payloadMap map[string]interface{}
	if err := json.Unmarshal(payloadBytes, &payloadMap); err != nil {
		return "", fmt.Errorf("failed to unmarshal payload to map: %w", err)
	}

	job := &queueJob{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    payloadMap,
		Status:     domain.JobStatusPending,
		CreatedAt:  r.now(),
		MaxRetries: maxRetries,
	}

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return "", err
	}
	pipe.Expire(ctx, jobKeyPrefix+job.ID, jobTTL)
	pipe.LPush(ctx, queueKeyPrefix+jobType, job.ID)

	statsKey := statsKeyPrefix + jobType
	pipe.HIncrBy(ctx, statsKey, "total_enqueued", 1)
	pipe.HIncrBy(ctx, statsKey, "pending", 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	r.logger.Info("Job enqueued",
		"job_id", job.ID,
		"job_type", jobType,
		"payload_size", len(payloadBytes),
	)

	return job.ID, nil
}

// Dequeue moves the next job onto the processing list and returns it.
// It returns nil, nil when no job arrives within the block timeout.
func (r *QueueRepository) Dequeue(ctx context.Context, jobType string) (*domain.QueueJob, error) {
	queueKey := queueKeyPrefix + jobType
	processingKey := processingPrefix + jobType

	var jobID string
	var err error
	if r.blockTimeout > 0 {
		jobID, err = r.client.BRPopLPush(ctx, queueKey, processingKey, r.blockTimeout).Result()
	} else {
		jobID, err = r.client.RPopLPush(ctx, queueKey, processingKey).Result()
	}
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn("Job data not found, removing from processing", "job_id", jobID)
			r.client.LRem(ctx, processingKey, 1, jobID)
		}
		return nil, err
	}

	now := r.now()
	job.Status = domain.JobStatusProcessing
	job.UpdatedAt = &now

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return nil, err
	}
	statsKey := statsKeyPrefix + jobType
	pipe.HIncrBy(ctx, statsKey, "pending", -1)
	pipe.HIncrBy(ctx, statsKey, "processing", 1)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to update job status", "error", err, "job_id", jobID)
	}

	r.logger.Debug("Job dequeued",
		"job_id", job.ID,
		"job_type", jobType,
		"retry_count", job.RetryCount,
	)

	return job.toDomain(), nil
}

// Complete marks a job as completed and removes it from processing
func (r *QueueRepository) Complete(ctx context.Context, jobID string) error {
	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job for completion: %w", err)
	}

	now := r.now()
	job.Status = domain.JobStatusCompleted
	job.UpdatedAt = &now

	pipe := r.client.TxPipeline()
	if err := saveJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.LRem(ctx, processingPrefix+job.Type, 1, jobID)

	statsKey := statsKeyPrefix + job.Type
	pipe.HIncrBy(ctx, statsKey, "processing", -1)
	pipe.HIncrBy(ctx, statsKey, "completed", 1)

	// Completed jobs are kept only briefly
	pipe.Expire(ctx, jobKeyPrefix+jobID, completedJobTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	r.logger.Info("Job completed", "job_id", jobID, "job_type", job.Type)
	return nil
}

// Fail records a failed attempt. The job is scheduled for retry with
// exponential backoff until maxRetries is exceeded, then dead-lettered.
func (r *QueueRepository) Fail(ctx context.Context, jobID string, errorMsg string) error {
	job, err := r.loadJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to get job for failure: %w", err)
	}

	now := r.now()
	job.Error = errorMsg
	job.UpdatedAt = &now
	job.RetryCount++

	statsKey := statsKeyPrefix + job.Type
	pipe := r.client.TxPipeline()

	if job.RetryCount <= job.MaxRetries {
		nextRetry := now.Add(backoff(job.RetryCount))
		job.NextRetry = &nextRetry
		job.Status = domain.JobStatusPending

		pipe.ZAdd(ctx, retryKeyPrefix+job.Type, redis.Z{
			Score:  float64(nextRetry.Unix()),
			Member: jobID,
		})

		r.logger.Info("Job scheduled for retry",
			"job_id", jobID,
			"job_type", job.Type,
			"retry_count", job.RetryCount,
			"next_retry", nextRetry,
			"error", errorMsg,
		)
	} else {
		job.Status = domain.JobStatusFailed
		pipe.LPush(ctx, deadLetterPrefix+job.Type, jobID)
		pipe.HIncrBy(ctx, statsKey, "failed", 1)

		r.logger.Error("Job failed permanently",
			"job_id", jobID,
			"job_type", job.Type,
			"retry_count", job.RetryCount,
			"error", errorMsg,
		)
	}

	if err := saveJob(ctx, pipe, job); err != nil {
		return err
	}
	pipe.LRem(ctx, processingPrefix+job.Type, 1, jobID)
	pipe.HIncrBy(ctx, statsKey, "processing", -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to handle job failure: %w", err)
	}

	return nil
}

// GetPendingCount returns the number of pending jobs for a job type
func (r *QueueRepository) GetPendingCount(ctx context.Context, jobType string) (int, error) {
	count, err := r.client.LLen(ctx, queueKeyPrefix+jobType).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return int(count), nil
}

// ProcessRetryJobs moves jobs from retry queue back to main queue when ready
func (r *QueueRepository) ProcessRetryJobs(ctx context.Context, jobType string) error {
	retryKey := retryKeyPrefix + jobType
	queueKey := queueKeyPrefix + jobType

	due, err := r.client.ZRangeByScore(ctx, retryKey, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get retry jobs: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	statsKey := statsKeyPrefix + jobType
	pipe := r.client.TxPipeline()
	for _, jobID := range due {
		pipe.ZRem(ctx, retryKey, jobID)
		pipe.LPush(ctx, queueKey, jobID)
		pipe.HIncrBy(ctx, statsKey, "pending", 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to process retry jobs: %w", err)
	}

	r.logger.Info("Processed retry jobs",
		"job_type", jobType,
		"count", len(due),
	)

	return nil
}

// GetQueueStats returns statistics for a job type
func (r *QueueRepository) GetQueueStats(ctx context.Context, jobType string) (map[string]int64, error) {
	stats, err := r.client.HGetAll(ctx, statsKeyPrefix+jobType).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	result := make(map[string]int64)
	for key, value := range stats {
		if val, err := strconv.ParseInt(value, 10, 64); err == nil {
			result[key] = val
		}
	}

	// Live list lengths
	if pending, err := r.client.LLen(ctx, queueKeyPrefix+jobType).Result(); err == nil {
		result["current_pending"] = pending
	}
	if processing, err := r.client.LLen(ctx, processingPrefix+jobType).Result(); err == nil {
		result["current_processing"] = processing
	}
	if retrying, err := r.client.ZCard(ctx, retryKeyPrefix+jobType).Result(); err == nil {
		result["current_retrying"] = retrying
	}
	if dead, err := r.client.LLen(ctx, deadLetterPrefix+jobType).Result(); err == nil {
		result["current_dead"] = dead
	}

	return result, nil
}
