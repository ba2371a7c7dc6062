package scheduler

import (
	"context"
	"log"
	"time"
)

// Every runs job on a fixed interval until ctx is cancelled.
// A non-positive interval falls back to one minute.
func Every(ctx context.Context, interval time.Duration, job Job) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.Execute(ctx); err != nil {
				log.Printf("%s (%s) failed: %v", job.Description(), job.Key(), err)
			}
		}
	}
}
