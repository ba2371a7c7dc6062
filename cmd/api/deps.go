package main

import (
	"context"
	"log"

	"bizconsole/internal/domain/automatch"
	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
	"bizconsole/internal/infrastructure/consoleapi"
	"bizconsole/internal/infrastructure/export"
	"bizconsole/internal/infrastructure/firebase"
	"bizconsole/internal/infrastructure/postgres"
	httphandlers "bizconsole/internal/interfaces/http"
	"bizconsole/internal/shared/config"
	"bizconsole/internal/shared/messages"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	BankingHandler  *httphandlers.BankingHandler
	MatchingHandler *httphandlers.MatchingHandler
	MatchLogHandler *httphandlers.MatchLogHandler // nil when the match log is disabled

	// For the scheduler
	Sessions         *matching.Store
	AutomatchService *automatch.Service

	// API key fallback for requests without a caller token
	ServiceKeyConfigured bool
}

// NewDependencies initializes all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{ServiceKeyConfigured: cfg.Backend.APIKey != ""}

	client := consoleapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)
	log.Printf("Console API client configured for %s", cfg.Backend.BaseURL)

	// Match log (optional)
	var recorder banking.Recorder
	var logService *matchlog.Service
	if cfg.Database.Enabled {
		db, err := postgres.New(cfg.Database.ConnectionString())
		if err != nil {
			return nil, err
		}
		log.Println("Connected to database")

		repo := postgres.NewMatchLogRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}

		deps.DB = db
		logService = matchlog.NewService(repo, export.XLSX{})
		recorder = logService
		deps.MatchLogHandler = httphandlers.NewMatchLogHandler(logService)
	} else {
		log.Println("Match log is disabled")
	}

	// Matching sessions and workflow
	deps.Sessions = matching.NewStore(cfg.Matching.SessionTTL)
	bankingService := banking.NewService(client, deps.Sessions, recorder)
	deps.BankingHandler = httphandlers.NewBankingHandler(bankingService)
	deps.MatchingHandler = httphandlers.NewMatchingHandler(bankingService)

	// Automatch
	var automatchRecorder automatch.Recorder
	if logService != nil {
		automatchRecorder = logService
	}
	deps.AutomatchService = automatch.NewService(client, automatchRecorder, automatch.Options{
		MinScore:    cfg.Automatch.MinScore,
		WorkerCount: cfg.Automatch.WorkerCount,
	})

	if cfg.Firebase.CredentialsFile != "" && len(cfg.Firebase.DeviceTokens) > 0 {
		msgs, err := messages.Load(cfg.Messages.File)
		if err != nil {
			log.Printf("Warning: Failed to load messages, automatch notifications disabled: %v", err)
		} else if fcm, err := firebase.NewClient(ctx, cfg.Firebase.CredentialsFile); err != nil {
			log.Printf("Warning: Failed to initialize Firebase, automatch notifications disabled: %v", err)
		} else {
			deps.AutomatchService.WithNotifications(fcm, cfg.Firebase.DeviceTokens, msgs)
			log.Printf("Automatch notifications enabled for %d devices", len(cfg.Firebase.DeviceTokens))
		}
	}

	return deps, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
