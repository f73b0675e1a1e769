package worker

import (
	"context"
	"fmt"
	"linkfolio/internal/domain"
	"log/slog"
	"sync"
	"time"
)

// maxJobsPerCycle bounds how many jobs of one type a poll handles
const maxJobsPerCycle = 10

// JobQueue is the part of the queue repository the worker consumes
type JobQueue interface {
	Dequeue(ctx context.Context, jobType string) (*domain.QueueJob, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, errorMsg string) error
	GetPendingCount(ctx context.Context, jobType string) (int, error)
	ProcessRetryJobs(ctx context.Context, jobType string) error
}

// Processor handles a single dequeued job
type Processor interface {
	Process(ctx context.Context, job *domain.QueueJob, logger *slog.Logger) error
}

// WorkerService processes background jobs
type WorkerService struct {
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	queue     JobQueue
	processor Processor
	metrics   *Metrics

	pollInterval time.Duration
	jobTypes     []string

	mu    sync.Mutex
	stats WorkerStats
}

// WorkerStats tracks worker performance metrics
type WorkerStats struct {
	JobsProcessed  int64
	JobsSucceeded  int64
	JobsFailed     int64
	LastJobTime    time.Time
	AverageJobTime time.Duration
}

// New creates a new worker service. metrics may be nil.
func New(
	logger *slog.Logger,
	queue JobQueue,
	processor Processor,
	metrics *Metrics,
	pollInterval time.Duration,
) *WorkerService {
	ctx, cancel := context.WithCancel(context.Background())

	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}

	return &WorkerService{
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		queue:        queue,
		processor:    processor,
		metrics:      metrics,
		pollInterval: pollInterval,
		jobTypes:     domain.JobTypes,
	}
}

// Start processes jobs until Stop is called
func (w *WorkerService) Start() error {
	w.logger.Info("Starting worker service...",
		"poll_interval", w.pollInterval,
		"job_types", w.jobTypes,
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Drain whatever queued up while the worker was down
	w.processPendingJobs()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.Info("Job processing stopped")
			return nil
		case <-ticker.C:
			w.processPendingJobs()
		}
	}
}

// Stop gracefully shuts down the worker service
func (w *WorkerService) Stop() error {
	w.logger.Info("Stopping worker service...")
	w.cancel()
	return nil
}

// processPendingJobs runs one poll over every job type
func (w *WorkerService) processPendingJobs() {
	for _, jobType := range w.jobTypes {
		if w.ctx.Err() != nil {
			return
		}
		if err := w.queue.ProcessRetryJobs(w.ctx, jobType); err != nil {
			w.logger.Error("Failed to promote retry jobs",
				"error", err,
				"job_type", jobType,
			)
		}
		w.processJobType(jobType)
	}
}

// processJobType processes pending jobs of a specific type
func (w *WorkerService) processJobType(jobType string) {
	pendingCount, err := w.queue.GetPendingCount(w.ctx, jobType)
	if err != nil {
		w.logger.Error("Failed to get pending job count",
			"error", err,
			"job_type", jobType,
		)
		return
	}

	if pendingCount == 0 {
		return
	}

	w.logger.Debug("Processing pending jobs",
		"job_type", jobType,
		"count", pendingCount,
	)

	maxJobs := min(pendingCount, maxJobsPerCycle)

	for i := 0; i < maxJobs; i++ {
		if w.ctx.Err() != nil {
			return
		}

		job, err := w.queue.Dequeue(w.ctx, jobType)
		if err != nil {
			w.logger.Error("Failed to dequeue job",
				"error", err,
				"job_type", jobType,
			)
			return
		}
		if job == nil {
			return
		}

		w.processJob(job)
	}
}

// processJob processes a single job
func (w *WorkerService) processJob(job *domain.QueueJob) {
	startTime := time.Now()
	jobLogger := w.logger.With(
		"job_id", job.ID,
		"job_type", job.Type,
		"retry_count", job.RetryCount,
	)

	jobLogger.Info("Processing job")

	processingErr := w.runJob(job, jobLogger)

	if processingErr != nil {
		jobLogger.Error("Job processing failed", "error", processingErr)

		if err := w.queue.Fail(w.ctx, job.ID, processingErr.Error()); err != nil {
			jobLogger.Error("Failed to mark job as failed", "error", err)
		}
	} else {
		jobLogger.Info("Job processed successfully")

		if err := w.queue.Complete(w.ctx, job.ID); err != nil {
			jobLogger.Error("Failed to mark job as completed", "error", err)
		}
	}

	jobDuration := time.Since(startTime)
	w.recordStats(processingErr == nil, jobDuration)
	w.metrics.RecordJob(job.Type, processingErr == nil, jobDuration)

	jobLogger.Debug("Job processing completed",
		"duration", jobDuration,
		"success", processingErr == nil,
	)
}

// runJob calls the processor and turns a panic into a job failure
func (w *WorkerService) runJob(job *domain.QueueJob, logger *slog.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return w.processor.Process(w.ctx, job, logger)
}

func (w *WorkerService) recordStats(success bool, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if success {
		w.stats.JobsSucceeded++
	} else {
		w.stats.JobsFailed++
	}
	w.stats.JobsProcessed++
	w.stats.LastJobTime = time.Now()

	// Running mean
	n := w.stats.JobsProcessed
	w.stats.AverageJobTime += (duration - w.stats.AverageJobTime) / time.Duration(n)
}

// GetStats returns a snapshot of the worker statistics
func (w *WorkerService) GetStats() WorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// HealthCheck performs a health check on the worker service
func (w *WorkerService) HealthCheck(ctx context.Context) error {
	if w.ctx.Err() != nil {
		return fmt.Errorf("worker context cancelled: %w", w.ctx.Err())
	}

	if _, err := w.queue.GetPendingCount(ctx, domain.JobTypeResolvePreview); err != nil {
		return fmt.Errorf("queue connectivity check failed: %w", err)
	}

	return nil
}
