package backfill

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/fortuna/pickvs/internal/store"
)

// ErrEmptyFilePath is returned when an import request names no file.
var ErrEmptyFilePath = errors.New("file_path is required")

// ErrPathNotAllowed is returned for files outside the import directory.
var ErrPathNotAllowed = errors.New("file_path must be inside the import directory")

// ResolveImportPath returns path as a cleaned absolute path under dir.
// Relative paths are taken relative to dir. An empty dir disables imports.
func ResolveImportPath(dir, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrEmptyFilePath
	}
	if strings.TrimSpace(dir) == "" {
		return "", ErrPathNotAllowed
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve import dir: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathNotAllowed
	}
	return path, nil
}

// Request represents an import invocation request.
type Request struct {
	FilePath string
	DryRun   bool
}

// jobQueue is the persistence the worker needs; *Repository implements it.
type jobQueue interface {
	CreateJob(ctx context.Context, job *Job) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, message string, lastErr error) error
	UpdateProgress(ctx context.Context, jobID string, current, total int, message string) error
	RecordSummary(ctx context.Context, jobID string, summary Summary) error
	ResetStuckJobs(ctx context.Context) error
	MarkNextJobRunning(ctx context.Context) (*Job, error)
	GetActiveJob(ctx context.Context) (*Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*Job, error)
}

type jobRunner interface {
	run(ctx context.Context, jobID string, spec JobSpec, reporter Reporter) (Summary, error)
}

// Service coordinates job persistence, execution, and status reporting.
type Service struct {
	repo      jobQueue
	runner    jobRunner
	importDir string

	historyLimit int
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewService constructs a Service that only imports files under importDir.
// Call Start to launch the worker.
func NewService(db *store.Database, runner *Runner, importDir string, logger *log.Logger) *Service {
	return newService(NewRepository(db), runner, importDir, logger)
}

func newService(repo jobQueue, runner jobRunner, importDir string, logger *log.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = log.New(log.Writer(), "[import] ", log.LstdFlags)
	}

	return &Service{
		repo:         repo,
		runner:       runner,
		importDir:    importDir,
		historyLimit: 10,
		pollInterval: 3 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}
}

// Start launches the background worker loop.
func (s *Service) Start() {
	if err := s.repo.ResetStuckJobs(s.ctx); err != nil {
		s.logger.Printf("failed to reset jobs: %v", err)
	}

	s.wg.Add(1)
	go s.worker()
}

// Shutdown stops the worker and waits for it to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Enqueue creates a new queued job from the provided request.
func (s *Service) Enqueue(ctx context.Context, req Request) (*Job, error) {
	path, err := ResolveImportPath(s.importDir, req.FilePath)
	if err != nil {
		return nil, err
	}

	job := &Job{
		FilePath:      path,
		DryRun:        req.DryRun,
		Status:        JobStatusQueued,
		StatusMessage: sql.NullString{String: "Queued", Valid: true},
	}

	stored, err := s.repo.CreateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("queued import %s for %s (dry_run=%v)", stored.JobID, stored.FilePath, stored.DryRun)
	return stored, nil
}

// GetStatus returns the currently running job plus recent history.
func (s *Service) GetStatus(ctx context.Context) (*StatusSummary, error) {
	active, err := s.repo.GetActiveJob(ctx)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListRecentJobs(ctx, s.historyLimit)
	if err != nil {
		return nil, err
	}

	return &StatusSummary{
		ActiveJob: active,
		History:   history,
	}, nil
}

func (s *Service) worker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
			job, err := s.repo.MarkNextJobRunning(s.ctx)
			if err != nil {
				s.logger.Printf("claim job error: %v", err)
				select {
				case <-s.ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if job == nil {
				select {
				case <-s.ctx.Done():
					return
				case <-ticker.C:
					continue
				}
			}

			s.executeJob(job)
		}
	}
}

func (s *Service) executeJob(job *Job) {
	// a panic fails the job instead of the process
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("import panicked: %v", p)
			s.logger.Printf("import %s failed: %v\n%s", job.JobID, err, debug.Stack())
			_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		}
	}()

	spec := JobSpec{FilePath: job.FilePath, DryRun: job.DryRun}

	reporter := &jobReporter{
		ctx:   s.ctx,
		repo:  s.repo,
		jobID: job.JobID,
	}

	s.logger.Printf("running import %s (%s)", job.JobID, job.FilePath)

	summary, err := s.runner.run(s.ctx, job.JobID, spec, reporter)
	if err != nil {
		s.logger.Printf("import %s failed: %v", job.JobID, err)
		_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusFailed, "Job failed", err)
		return
	}

	if err := s.repo.RecordSummary(s.ctx, job.JobID, summary); err != nil {
		s.logger.Printf("record summary for %s: %v", job.JobID, err)
	}

	message := fmt.Sprintf("Loaded %d games, %d odds (%d odds skipped)",
		summary.GamesLoaded, summary.OddsLoaded, summary.OddsSkipped)
	if job.DryRun {
		message = fmt.Sprintf("Dry run: parsed %d games, %d odds", summary.GamesParsed, summary.OddsParsed)
	}

	_ = s.repo.UpdateStatus(s.ctx, job.JobID, JobStatusCompleted, message, nil)
	s.logger.Printf("✓ import %s complete: %s", job.JobID, message)
}

type jobReporter struct {
	ctx     context.Context
	repo    jobQueue
	jobID   string
	current int
	total   int
}

func (r *jobReporter) OnJobStart(spec JobSpec) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, 0, 0, fmt.Sprintf("Parsing %s", spec.FilePath))
}

func (r *jobReporter) OnProgress(message string, current int, total int) {
	if total > 0 {
		r.total = total
	}
	r.current = current
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, current, r.total, message)
}

func (r *jobReporter) OnJobComplete(summary Summary) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, r.total, r.total, "Job complete")
}

func (r *jobReporter) OnJobError(err error) {
	_ = r.repo.UpdateProgress(r.ctx, r.jobID, r.current, r.total, err.Error())
}
