package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bizconsole/internal/domain/automatch"
	"bizconsole/internal/domain/banking"
	"bizconsole/internal/domain/matching"
	"bizconsole/internal/domain/matchlog"
	"bizconsole/internal/infrastructure/consoleapi"
	"bizconsole/internal/infrastructure/export"
	"bizconsole/internal/infrastructure/postgres"
	"bizconsole/internal/shared/config"
)

const usage = `bizconsole admin CLI - maintenance commands for the matching console

Usage:
  admin <command> [options]

Commands:
  automatch    Accept high-confidence match suggestions
  reconcile    Lock transactions for a reconciliation period
  export-log   Write the match log to an XLSX file

Examples:
  # Sweep one bank account
  admin automatch --account-id=acc-1

  # Sweep every account with a stricter threshold
  admin automatch --all --min-score=0.95 --workers=8

  # Reconcile September
  admin reconcile --ids=txn-1,txn-2 --from=2026-09-01 --to=2026-09-30

  # Export the last 500 match log entries
  admin export-log --out=match-log.xlsx --limit=500
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage + "\n")
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "automatch":
		runAutomatch(os.Args[2:])
	case "reconcile":
		runReconcile(os.Args[2:])
	case "export-log":
		runExportLog(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage + "\n")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage + "\n")
		os.Exit(1)
	}
}

func runAutomatch(args []string) {
	fs := flag.NewFlagSet("automatch", flag.ExitOnError)

	accountIDs := fs.String("account-id", "", "Bank account ID(s) to sweep (comma-separated for multiple)")
	all := fs.Bool("all", false, "Sweep every bank account")
	minScore := fs.Float64("min-score", automatch.DefaultMinScore, "Minimum suggestion score to accept (0-1)")
	workers := fs.Int("workers", automatch.DefaultWorkerCount, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	fs.Usage = func() {
		fmt.Println("Usage: admin automatch [options]")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Println("  admin automatch --account-id=acc-1")
		fmt.Println("  admin automatch --account-id=acc-1,acc-2")
		fmt.Println("  admin automatch --all --workers=8 --timeout=1h")
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *accountIDs == "" && !*all {
		fmt.Println("Error: must specify --account-id or --all")
		fs.Usage()
		os.Exit(1)
	}
	if *minScore < 0 || *minScore > 1 {
		log.Fatalf("Invalid --min-score %v: must be between 0 and 1", *minScore)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg := loadConfig()
	client := newClient(cfg)
	logService, closeDB := openMatchLog(cfg)
	defer closeDB()

	var recorder automatch.Recorder
	if logService != nil {
		recorder = logService
	}
	service := automatch.NewService(client, recorder, automatch.Options{
		MinScore:    *minScore,
		WorkerCount: *workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var result *automatch.SweepResult
	if *all {
		result, err = service.SweepAll(ctx)
	} else {
		ids := parseIDs(*accountIDs)
		log.Printf("Starting automatch for %d account(s) with %d workers", len(ids), *workers)
		result, err = service.Sweep(ctx, ids)
	}
	if err != nil {
		log.Fatalf("Automatch failed: %v", err)
	}

	printSweepResult(result)
}

func printSweepResult(result *automatch.SweepResult) {
	fmt.Printf("\n=== Automatch (%d accounts) ===\n", result.Accounts)
	fmt.Printf("  Transactions checked: %d\n", result.Checked)
	fmt.Printf("  Suggestions accepted: %d\n", result.Accepted)
	fmt.Printf("  Skipped:              %d\n", result.Skipped)
	fmt.Printf("  Duration:             %v\n", result.Duration.Round(time.Millisecond))

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors:               %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i >= 5 {
				fmt.Printf("    ... and %d more errors\n", len(result.Errors)-5)
				break
			}
			fmt.Printf("    - %s\n", e)
		}
	}
}

func runReconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)

	ids := fs.String("ids", "", "Transaction IDs to reconcile (comma-separated)")
	from := fs.String("from", "", "Period start (YYYY-MM-DD)")
	to := fs.String("to", "", "Period end (YYYY-MM-DD)")
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation")

	fs.Usage = func() {
		fmt.Println("Usage: admin reconcile --ids=... --from=YYYY-MM-DD --to=YYYY-MM-DD")
		fmt.Println("\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	params := banking.ReconcileParams{
		TransactionIDs: parseIDs(*ids),
		Period:         banking.Period{From: *from, To: *to},
	}
	if err := params.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg := loadConfig()
	logService, closeDB := openMatchLog(cfg)
	defer closeDB()

	var recorder banking.Recorder
	if logService != nil {
		recorder = logService
	}
	service := banking.NewService(newClient(cfg), matching.NewStore(0), recorder)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := service.Reconcile(ctx, params); err != nil {
		log.Fatalf("Reconcile failed: %v", err)
	}
	fmt.Printf("Reconciled %d transaction(s) for %s to %s\n", len(params.TransactionIDs), params.Period.From, params.Period.To)
}

func runExportLog(args []string) {
	fs := flag.NewFlagSet("export-log", flag.ExitOnError)

	out := fs.String("out", "match-log.xlsx", "Output file")
	txID := fs.String("tx-id", "", "Only entries for this transaction")
	action := fs.String("action", "", "Only entries with this action")
	limit := fs.Int("limit", matchlog.DefaultLimit, "Maximum number of entries")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig()
	if !cfg.Database.Enabled {
		log.Fatal("Match log is disabled (set MATCH_LOG_ENABLED=true)")
	}
	logService, closeDB := openMatchLog(cfg)
	defer closeDB()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *out, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err = logService.Export(ctx, f, matchlog.ListFilter{
		TransactionID: *txID,
		Action:        matchlog.Action(*action),
		Limit:         *limit,
	})
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}
	fmt.Printf("Wrote %s\n", *out)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Backend.APIKey == "" {
		log.Println("Warning: API_KEY is not set, backend calls will fail")
	}
	return cfg
}

func newClient(cfg *config.Config) *consoleapi.Client {
	return consoleapi.NewClient(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Backend.Timeout)
}

// openMatchLog connects the match log when it is enabled. The returned func closes it.
func openMatchLog(cfg *config.Config) (*matchlog.Service, func()) {
	if !cfg.Database.Enabled {
		return nil, func() {}
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	repo := postgres.NewMatchLogRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		db.Close()
		log.Fatalf("Failed to migrate match log: %v", err)
	}
	return matchlog.NewService(repo, export.XLSX{}), func() { db.Close() }
}

// parseIDs splits a comma-separated list, dropping blanks.
func parseIDs(s string) []string {
	var ids []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
