package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultJobTimeout bounds a single job when the pool is not given a timeout.
const DefaultJobTimeout = 2 * time.Minute

var (
	jobTracer          = otel.Tracer("bizconsole/scheduler")
	jobMeter           = otel.Meter("bizconsole/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
)

// ErrQueueFull is returned by Submit when the job buffer has no room.
var ErrQueueFull = errors.New("job queue full")

// WorkerPool runs submitted jobs on a fixed number of goroutines.
type WorkerPool struct {
	workerCount int
	jobDelay    time.Duration
	jobTimeout  time.Duration
	jobs        chan Job
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewWorkerPool creates a pool. jobDelay spaces out jobs on each worker so the backend
// is not flooded; a non-positive jobTimeout uses DefaultJobTimeout.
func NewWorkerPool(workerCount int, jobDelay, jobTimeout time.Duration, queueSize int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: workerCount,
		jobDelay:    jobDelay,
		jobTimeout:  jobTimeout,
		jobs:        make(chan Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	log.Printf("Starting worker pool with %d workers", wp.workerCount)

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job Job) {
	log.Printf("Worker %d: Processing %s (%s)", workerID, job.Description(), job.Key())

	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.key", job.Key()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		log.Printf("Worker %d: Error processing %s (%s): %v", workerID, job.Description(), job.Key(), err)
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.Printf("Worker %d: Completed %s (%s) in %s", workerID, job.Description(), job.Key(), time.Since(start).Round(time.Millisecond))
}

// Submit queues a job without blocking. A full queue drops the job and returns ErrQueueFull.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("%w: dropping %s", ErrQueueFull, job.Key())
	}
}

// SubmitBatch queues jobs and returns how many were accepted.
func (wp *WorkerPool) SubmitBatch(jobs []Job) int {
	submitted := 0
	for _, job := range jobs {
		if err := wp.Submit(job); err != nil {
			log.Printf("Warning: failed to submit %s: %v", job.Description(), err)
			continue
		}
		submitted++
	}
	log.Printf("Submitted %d/%d jobs to worker pool", submitted, len(jobs))
	return submitted
}

// ShutdownWithTimeout stops accepting jobs and waits for running ones. After timeout
// the pool context is cancelled so in-flight jobs see ctx.Done().
func (wp *WorkerPool) ShutdownWithTimeout(timeout time.Duration) {
	wp.mu.Lock()
	if !wp.closed {
		wp.closed = true
		close(wp.jobs)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool: All workers finished")
	case <-time.After(timeout):
		log.Println("Worker pool: Timeout reached, cancelling running jobs")
	}
	wp.cancel()
}
