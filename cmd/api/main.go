package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"bizconsole/internal/interfaces/scheduler"
	"bizconsole/internal/shared/config"
	"bizconsole/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The console renders amounts as numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				log.Printf("Error shutting down telemetry: %v", err)
			}
		}()
		log.Printf("Telemetry enabled, metrics on :%s", cfg.Telemetry.MetricsPort)
	}

	deps, err := NewDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Idle sessions are dropped even when the automatch scheduler is off.
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go scheduler.Every(pruneCtx, cfg.Matching.SessionTTL/2, scheduler.NewSessionPruneJob(deps.Sessions))

	var sched *scheduler.Scheduler
	if cfg.Automatch.Enabled {
		sched, err = scheduler.New(scheduler.Config{
			ScheduleTimes: cfg.Automatch.ScheduleTimes,
			WorkerCount:   1,
			JobDelay:      cfg.Automatch.JobDelay,
			JobTimeout:    cfg.Automatch.Timeout,
			QueueSize:     cfg.Automatch.QueueSize,
			RunOnStartup:  cfg.Automatch.RunOnStartup,
			JobProvider: func(ctx context.Context) ([]scheduler.Job, error) {
				return []scheduler.Job{scheduler.NewAutomatchJob(deps.AutomatchService)}, nil
			},
		})
		if err != nil {
			return err
		}
		sched.Start()
	} else {
		log.Println("Automatch scheduler is disabled")
	}

	handler := SetupRoutes(deps, cfg)
	srvs := newServers(handler, cfg)
	srvs.start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	srvs.shutdown(sched, shutdownTimeout)
	return nil
}
