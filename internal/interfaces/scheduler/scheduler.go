package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// ScheduleTime is a time of day at which the scheduler fires.
type ScheduleTime struct {
	Hour   int
	Minute int
}

func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses HH:MM.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time %q (expected HH:MM): %w", s, err)
	}
	return ScheduleTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// JobProvider builds the jobs for one scheduled run.
type JobProvider func(ctx context.Context) ([]Job, error)

// Config holds scheduler settings.
type Config struct {
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	JobTimeout    time.Duration
	QueueSize     int
	RunOnStartup  bool
	JobProvider   JobProvider
}

// Scheduler runs the job provider at fixed times of day and feeds its jobs to a worker pool.
type Scheduler struct {
	workerPool    *WorkerPool
	scheduleTimes []ScheduleTime
	runOnStartup  bool
	jobProvider   JobProvider
	now           func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun string
}

// New validates cfg and creates a stopped scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.JobProvider == nil {
		return nil, fmt.Errorf("a job provider is required")
	}

	times := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, s := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(s)
		if err != nil {
			return nil, err
		}
		times = append(times, st)
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		workerPool:    NewWorkerPool(cfg.WorkerCount, cfg.JobDelay, cfg.JobTimeout, cfg.QueueSize),
		scheduleTimes: times,
		runOnStartup:  cfg.RunOnStartup,
		jobProvider:   cfg.JobProvider,
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start launches the worker pool and the schedule loop.
func (s *Scheduler) Start() {
	s.workerPool.Start()

	if s.runOnStartup {
		log.Println("Scheduler: Running initial batch on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	log.Printf("Scheduler started, next run at %s", s.NextRun().Format(time.RFC3339))
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				log.Printf("Scheduler: Triggered at %s", now.Format("15:04"))
				s.runJobs()
			}
		}
	}
}

// shouldRun reports whether now matches a schedule time that has not fired yet.
func (s *Scheduler) shouldRun(now time.Time) bool {
	key := now.Format("2006-01-02 15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}
	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}
	return false
}

func (s *Scheduler) runJobs() int {
	ctx, cancel := context.WithTimeout(s.ctx, time.Minute)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		log.Printf("Scheduler: Failed to build jobs: %v", err)
		return 0
	}
	if len(jobs) == 0 {
		log.Println("Scheduler: No jobs to run")
		return 0
	}
	return s.workerPool.SubmitBatch(jobs)
}

// TriggerNow runs the job provider immediately and returns how many jobs were queued.
func (s *Scheduler) TriggerNow() int {
	log.Println("Scheduler: Manual trigger")
	return s.runJobs()
}

// NextRun returns the next time the scheduler will fire.
func (s *Scheduler) NextRun() time.Time {
	now := s.now()
	var next time.Time
	for _, st := range s.scheduleTimes {
		t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		if next.IsZero() || t.Before(next) {
			next = t
		}
	}
	return next
}

// Shutdown stops the schedule loop and drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	log.Println("Scheduler: Shutting down...")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Println("Scheduler: Timeout waiting for schedule loop")
	}

	s.workerPool.ShutdownWithTimeout(timeout)
	log.Println("Scheduler: Shutdown complete")
}
