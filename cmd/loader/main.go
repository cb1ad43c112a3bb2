package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fortuna/pickvs/internal/backfill"
	"github.com/fortuna/pickvs/internal/config"
	"github.com/fortuna/pickvs/internal/store"
)

const (
	appName    = "pickvs-loader"
	appVersion = "1.0.0"
)

func main() {
	log.Printf("=== %s v%s ===", appName, appVersion)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.SetFlags(cfg.LogFlags())

	var (
		file      = flag.String("file", "", "CSV or .xlsx file of historical odds")
		dsn       = flag.String("dsn", cfg.DatabaseURL, "PostgreSQL DSN (DATABASE_URL)")
		pooler    = flag.String("pooler", cfg.DatabaseURLPooler, "Pooled DSN preferred for bulk loads (DATABASE_URL_POOLER)")
		gameBatch = flag.Int("game-batch", cfg.GameBatchSize, "Games per INSERT statement")
		oddsBatch = flag.Int("odds-batch", cfg.OddsBatchSize, "Odds rows per INSERT statement")
		dryRun    = flag.Bool("dry-run", false, "Parse only, do not write to the database")
	)

	flag.Parse()

	if *file == "" {
		log.Fatalf("Specify --file")
	}

	// a dry run only parses, so it needs no database at all
	var db *store.Database
	if !*dryRun {
		cfg.DatabaseURL, cfg.DatabaseURLPooler = *dsn, *pooler
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}

		db, err = store.NewDatabase(cfg.LoaderDSN())
		if err != nil {
			log.Fatalf("connect database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(); err != nil {
			log.Fatalf("run migrations: %v", err)
		}
	}

	runner := backfill.NewRunner(db, backfill.RunnerConfig{
		GameBatchSize: *gameBatch,
		OddsBatchSize: *oddsBatch,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spec := backfill.JobSpec{FilePath: *file, DryRun: *dryRun}
	if _, err := runner.Run(ctx, spec, &consoleReporter{dryRun: *dryRun}); err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Println("✓ Import completed successfully")
}

type consoleReporter struct {
	dryRun bool
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	log.Printf("Importing %s (dry_run=%v)", spec.FilePath, c.dryRun)
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	log.Printf("Progress: %s (%d/%d)", message, current, total)
}

func (c *consoleReporter) OnJobComplete(summary backfill.Summary) {
	log.Printf("Rows read: %d, skipped: %d (malformed: %d)", summary.RowsRead, summary.RowsSkipped, summary.MalformedRows)
	log.Printf("Games parsed: %d, loaded: %d", summary.GamesParsed, summary.GamesLoaded)
	log.Printf("Odds parsed: %d, loaded: %d, skipped: %d", summary.OddsParsed, summary.OddsLoaded, summary.OddsSkipped)
}

func (c *consoleReporter) OnJobError(err error) {
	log.Printf("Job error: %v", err)
}
