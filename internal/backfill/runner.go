package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fortuna/pickvs/internal/ingest/oddsdata"
	"github.com/fortuna/pickvs/internal/publisher"
	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

// Invalidator drops cached reads made stale by an import.
type Invalidator interface {
	InvalidateUpcoming(ctx context.Context) error
}

// EventPublisher announces committed imports.
type EventPublisher interface {
	PublishImport(ctx context.Context, event publisher.ImportEvent) error
}

// RunnerConfig tunes a Runner. Zero batch sizes use the defaults; nil
// Cache and Publisher disable the post-commit hooks.
type RunnerConfig struct {
	GameBatchSize int
	OddsBatchSize int
	Cache         Invalidator
	Publisher     EventPublisher
}

// ErrNoDatabase is returned when a runner without a database is asked to
// write. Dry runs never touch the database.
var ErrNoDatabase = errors.New("import runner has no database")

// Runner parses a source file and loads it in one transaction.
type Runner struct {
	db  *store.Database
	cfg RunnerConfig
}

// NewRunner constructs a runner. db may be nil for dry runs only.
func NewRunner(db *store.Database, cfg RunnerConfig) *Runner {
	return &Runner{db: db, cfg: cfg}
}

// Run executes the job spec, reporting progress via the Reporter if provided.
// Games and odds commit together or not at all.
func (r *Runner) Run(ctx context.Context, spec JobSpec, reporter Reporter) (Summary, error) {
	return r.run(ctx, "", spec, reporter)
}

func (r *Runner) run(ctx context.Context, jobID string, spec JobSpec, reporter Reporter) (Summary, error) {
	var summary Summary

	if reporter != nil {
		reporter.OnJobStart(spec)
	}

	fail := func(err error) (Summary, error) {
		if reporter != nil {
			reporter.OnJobError(err)
		}
		return summary, err
	}

	parsed, err := oddsdata.ParseFile(spec.FilePath)
	if err != nil {
		return fail(fmt.Errorf("parse %s: %w", spec.FilePath, err))
	}

	summary.RowsRead = parsed.RowsRead
	summary.RowsSkipped = parsed.RowsSkipped
	summary.MalformedRows = parsed.MalformedRows
	summary.GamesParsed = len(parsed.Games)
	summary.OddsParsed = len(parsed.Odds)

	total := len(parsed.Games) + len(parsed.Odds)
	if reporter != nil {
		reporter.OnProgress(fmt.Sprintf("Parsed %d rows (%d skipped, %d malformed): %d games, %d odds",
			parsed.RowsRead, parsed.RowsSkipped, parsed.MalformedRows, len(parsed.Games), len(parsed.Odds)), 0, total)
	}
	if parsed.MalformedRows > 0 {
		log.Printf("Warning: %s: %d rows could not be read as CSV", spec.FilePath, parsed.MalformedRows)
	}

	if spec.DryRun {
		if reporter != nil {
			reporter.OnProgress("Dry-run mode: no data will be written", 0, total)
			reporter.OnJobComplete(summary)
		}
		return summary, nil
	}

	if r.db == nil {
		return fail(ErrNoDatabase)
	}

	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		keys, err := loadGames(ctx, repository.NewGameRepository(tx), parsed.Games, r.cfg.GameBatchSize,
			func(done, n int) {
				if reporter != nil {
					reporter.OnProgress(fmt.Sprintf("Games %d/%d", done, n), done, total)
				}
			})
		if err != nil {
			return err
		}

		stats, err := loadOdds(ctx, repository.NewOddsRepository(tx), parsed.Odds, keys, r.cfg.OddsBatchSize,
			func(done, n int) {
				if reporter != nil {
					reporter.OnProgress(fmt.Sprintf("Odds %d/%d", done, n), len(parsed.Games)+done, total)
				}
			})
		if err != nil {
			return err
		}

		summary.GamesLoaded = keys.Len()
		summary.OddsLoaded = stats.Written
		summary.OddsSkipped = stats.Skipped
		return nil
	})
	if err != nil {
		return fail(fmt.Errorf("load %s: %w", spec.FilePath, err))
	}

	r.afterCommit(ctx, jobID, spec, summary)

	if reporter != nil {
		reporter.OnJobComplete(summary)
	}

	return summary, nil
}

// afterCommit runs the cache and stream hooks. The import is already
// durable, so hook failures are logged only.
func (r *Runner) afterCommit(ctx context.Context, jobID string, spec JobSpec, summary Summary) {
	if r.cfg.Cache != nil {
		if err := r.cfg.Cache.InvalidateUpcoming(ctx); err != nil {
			log.Printf("Warning: failed to invalidate upcoming games cache: %v", err)
		}
	}

	if r.cfg.Publisher != nil {
		event := publisher.ImportEvent{
			JobID:       jobID,
			Source:      filepath.Base(spec.FilePath),
			Games:       summary.GamesLoaded,
			Odds:        summary.OddsLoaded,
			SkippedOdds: summary.OddsSkipped,
		}
		if err := r.cfg.Publisher.PublishImport(ctx, event); err != nil {
			log.Printf("Warning: failed to publish import event: %v", err)
		}
	}
}
