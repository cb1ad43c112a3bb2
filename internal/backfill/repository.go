package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortuna/pickvs/internal/store"
)

const jobColumns = `job_id, file_path, dry_run, status, status_message,
	progress_current, progress_total, games_loaded, odds_loaded, odds_skipped,
	last_error, created_at, updated_at, started_at, completed_at`

// Repository handles persistence for import jobs.
type Repository struct {
	db *store.Database
}

// NewRepository constructs a Repository.
func NewRepository(db *store.Database) *Repository {
	return &Repository{db: db}
}

// CreateJob inserts a new job row and returns the stored record.
func (r *Repository) CreateJob(ctx context.Context, job *Job) (*Job, error) {
	query := `
		INSERT INTO import_jobs (file_path, dry_run, status, status_message)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + jobColumns

	row := r.db.DB().QueryRowContext(ctx, query,
		job.FilePath, job.DryRun, string(job.Status), job.StatusMessage,
	)

	stored, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return stored, nil
}

// UpdateStatus updates status, message and optional error.
func (r *Repository) UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error {
	query := `
		UPDATE import_jobs
		SET status = $2::varchar,
			status_message = $3,
			last_error = $4,
			updated_at = NOW(),
			completed_at = CASE WHEN $2::varchar IN ('completed','failed') THEN NOW() ELSE completed_at END
		WHERE job_id = $1
	`

	var errText sql.NullString
	if lastErr != nil {
		errText = sql.NullString{String: lastErr.Error(), Valid: true}
	}

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, string(status), message, errText); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}

	return nil
}

// UpdateProgress updates the progress counters and optional message.
func (r *Repository) UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error {
	query := `
		UPDATE import_jobs
		SET progress_current = $2,
			progress_total = $3,
			status_message = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	if _, err := r.db.DB().ExecContext(ctx, query, jobID, current, total, message); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	return nil
}

// RecordSummary stores the load counts of a finished job.
func (r *Repository) RecordSummary(ctx context.Context, jobID string, summary Summary) error {
	query := `
		UPDATE import_jobs
		SET games_loaded = $2,
			odds_loaded = $3,
			odds_skipped = $4,
			updated_at = NOW()
		WHERE job_id = $1
	`

	_, err := r.db.DB().ExecContext(ctx, query, jobID, summary.GamesLoaded, summary.OddsLoaded, summary.OddsSkipped)
	if err != nil {
		return fmt.Errorf("record job summary: %w", err)
	}
	return nil
}

// ResetStuckJobs moves running jobs back to queued (used during service restarts).
func (r *Repository) ResetStuckJobs(ctx context.Context) error {
	_, err := r.db.DB().ExecContext(ctx, `
		UPDATE import_jobs
		SET status = 'queued',
			status_message = 'Reset after service restart',
			updated_at = NOW()
		WHERE status = 'running'
	`)
	if err != nil {
		return fmt.Errorf("reset stuck jobs: %w", err)
	}
	return nil
}

// MarkNextJobRunning atomically claims the next queued job. It returns nil
// when the queue is empty.
func (r *Repository) MarkNextJobRunning(ctx context.Context) (*Job, error) {
	query := `
		WITH next_job AS (
			SELECT job_id
			FROM import_jobs
			WHERE status = 'queued'
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE import_jobs
		SET status = 'running',
			status_message = 'Starting job...',
			started_at = COALESCE(started_at, NOW()),
			updated_at = NOW()
		FROM next_job
		WHERE import_jobs.job_id = next_job.job_id
		RETURNING import_jobs.job_id, import_jobs.file_path, import_jobs.dry_run,
			import_jobs.status, import_jobs.status_message,
			import_jobs.progress_current, import_jobs.progress_total,
			import_jobs.games_loaded, import_jobs.odds_loaded, import_jobs.odds_skipped,
			import_jobs.last_error, import_jobs.created_at, import_jobs.updated_at,
			import_jobs.started_at, import_jobs.completed_at
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the currently running job, if any.
func (r *Repository) GetActiveJob(ctx context.Context) (*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM import_jobs
		WHERE status = 'running'
		ORDER BY started_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.db.DB().QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recent jobs of any status.
func (r *Repository) ListRecentJobs(ctx context.Context, limit int) ([]*Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM import_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.DB().QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

func scanJob(scanner interface {
	Scan(dest ...interface{}) error
}) (*Job, error) {
	job := &Job{}
	err := scanner.Scan(
		&job.JobID,
		&job.FilePath,
		&job.DryRun,
		&job.Status,
		&job.StatusMessage,
		&job.ProgressCurrent,
		&job.ProgressTotal,
		&job.GamesLoaded,
		&job.OddsLoaded,
		&job.OddsSkipped,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return job, nil
}
