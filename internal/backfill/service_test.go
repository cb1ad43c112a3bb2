package backfill

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"testing"
)

type statusUpdate struct {
	status  JobStatus
	message string
	err     error
}

type fakeQueue struct {
	created  []*Job
	statuses []statusUpdate
	summary  *Summary
}

func (q *fakeQueue) CreateJob(_ context.Context, job *Job) (*Job, error) {
	stored := *job
	stored.JobID = "job-1"
	q.created = append(q.created, &stored)
	return &stored, nil
}

func (q *fakeQueue) UpdateStatus(_ context.Context, _ string, status JobStatus, message string, lastErr error) error {
	q.statuses = append(q.statuses, statusUpdate{status: status, message: message, err: lastErr})
	return nil
}

func (q *fakeQueue) UpdateProgress(context.Context, string, int, int, string) error { return nil }

func (q *fakeQueue) RecordSummary(_ context.Context, _ string, summary Summary) error {
	q.summary = &summary
	return nil
}

func (q *fakeQueue) ResetStuckJobs(context.Context) error { return nil }

func (q *fakeQueue) MarkNextJobRunning(context.Context) (*Job, error) { return nil, nil }

func (q *fakeQueue) GetActiveJob(context.Context) (*Job, error) { return nil, nil }

func (q *fakeQueue) ListRecentJobs(context.Context, int) ([]*Job, error) { return q.created, nil }

type fakeRunner struct {
	summary Summary
	err     error
	panics  bool
	specs   []JobSpec
}

func (r *fakeRunner) run(_ context.Context, _ string, spec JobSpec, reporter Reporter) (Summary, error) {
	r.specs = append(r.specs, spec)
	reporter.OnJobStart(spec)
	if r.panics {
		panic("Cannot create a Decimal from NaN")
	}
	if r.err != nil {
		reporter.OnJobError(r.err)
		return Summary{}, r.err
	}
	reporter.OnJobComplete(r.summary)
	return r.summary, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

const testImportDir = "/data"

func TestService_Enqueue(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{"valid", Request{FilePath: "/data/odds.csv", DryRun: true}, nil},
		{"relative to import dir", Request{FilePath: "odds.csv", DryRun: true}, nil},
		{"cleaned inside import dir", Request{FilePath: "/data/2024/../odds.csv", DryRun: true}, nil},
		{"empty path", Request{FilePath: ""}, ErrEmptyFilePath},
		{"blank path", Request{FilePath: "   "}, ErrEmptyFilePath},
		{"outside import dir", Request{FilePath: "/etc/passwd"}, ErrPathNotAllowed},
		{"relative traversal", Request{FilePath: "../etc/passwd"}, ErrPathNotAllowed},
		{"absolute traversal", Request{FilePath: "/data/../etc/passwd"}, ErrPathNotAllowed},
		{"sibling with shared prefix", Request{FilePath: "/data2/odds.csv"}, ErrPathNotAllowed},
		{"import dir itself", Request{FilePath: "/data"}, ErrPathNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &fakeQueue{}
			svc := newService(queue, &fakeRunner{}, testImportDir, quietLogger())

			job, err := svc.Enqueue(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantErr != nil {
				if len(queue.created) != 0 {
					t.Error("invalid request must not create a job")
				}
				return
			}
			if job.Status != JobStatusQueued || !job.DryRun || job.FilePath != "/data/odds.csv" {
				t.Errorf("unexpected job %+v", job)
			}
		})
	}
}

func TestService_ExecuteJobSuccess(t *testing.T) {
	queue := &fakeQueue{}
	runner := &fakeRunner{summary: Summary{GamesLoaded: 2, OddsLoaded: 6}}
	svc := newService(queue, runner, testImportDir, quietLogger())

	svc.executeJob(&Job{JobID: "job-1", FilePath: "/data/odds.csv"})

	if len(runner.specs) != 1 || runner.specs[0].FilePath != "/data/odds.csv" {
		t.Fatalf("unexpected specs %+v", runner.specs)
	}
	if queue.summary == nil || queue.summary.OddsLoaded != 6 {
		t.Errorf("expected summary to be recorded, got %+v", queue.summary)
	}
	last := queue.statuses[len(queue.statuses)-1]
	if last.status != JobStatusCompleted || last.err != nil {
		t.Errorf("expected completed, got %+v", last)
	}
}

func TestService_ExecuteJobFailure(t *testing.T) {
	queue := &fakeQueue{}
	boom := errors.New("parse failed")
	svc := newService(queue, &fakeRunner{err: boom}, testImportDir, quietLogger())

	svc.executeJob(&Job{JobID: "job-1", FilePath: "/data/odds.csv"})

	if queue.summary != nil {
		t.Error("failed job must not record a summary")
	}
	last := queue.statuses[len(queue.statuses)-1]
	if last.status != JobStatusFailed || !errors.Is(last.err, boom) {
		t.Errorf("expected failed with cause, got %+v", last)
	}
}

func TestService_ExecuteJobPanicFailsJob(t *testing.T) {
	queue := &fakeQueue{}
	svc := newService(queue, &fakeRunner{panics: true}, testImportDir, quietLogger())

	svc.executeJob(&Job{JobID: "job-1", FilePath: "/data/odds.csv"})

	if len(queue.statuses) == 0 {
		t.Fatal("expected the job to be marked failed")
	}
	last := queue.statuses[len(queue.statuses)-1]
	if last.status != JobStatusFailed || last.err == nil {
		t.Errorf("expected failed with cause, got %+v", last)
	}
}

func TestResolveImportPath_EmptyDirDisablesImports(t *testing.T) {
	if _, err := ResolveImportPath("", "/data/odds.csv"); !errors.Is(err, ErrPathNotAllowed) {
		t.Fatalf("expected ErrPathNotAllowed, got %v", err)
	}
}

func TestService_GetStatus(t *testing.T) {
	queue := &fakeQueue{created: []*Job{{JobID: "a", StatusMessage: sql.NullString{String: "Queued", Valid: true}}}}
	svc := newService(queue, &fakeRunner{}, testImportDir, quietLogger())

	summary, err := svc.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if summary.ActiveJob != nil || len(summary.History) != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestService_ShutdownStopsWorker(t *testing.T) {
	svc := newService(&fakeQueue{}, &fakeRunner{}, testImportDir, quietLogger())
	svc.Start()

	if err := svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
