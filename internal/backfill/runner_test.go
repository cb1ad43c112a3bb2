package backfill

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/publisher"
	"github.com/fortuna/pickvs/internal/store"
)

const sampleCSV = `date,season,team,home/visitor,opponent,score,opponentScore,moneyLine,opponentMoneyLine,total,spread,secondHalfTotal
2024-01-01,2024,TeamA,vs,TeamB,100,90,-150,130,210.5,-5.5,105
2024-01-01,2024,TeamB,@,TeamA,90,100,130,-150,210.5,5.5,105
2024-01-02,2024,TeamC,vs,TeamD,100,90,0,130,210.5,-5.5,105
`

type fakeInvalidator struct{ calls int }

func (f *fakeInvalidator) InvalidateUpcoming(context.Context) error {
	f.calls++
	return nil
}

type fakePublisher struct{ events []publisher.ImportEvent }

func (f *fakePublisher) PublishImport(_ context.Context, e publisher.ImportEvent) error {
	f.events = append(f.events, e)
	return nil
}

type recordingReporter struct {
	started   bool
	completed *Summary
	errs      []error
}

func (r *recordingReporter) OnJobStart(JobSpec) { r.started = true }
func (r *recordingReporter) OnProgress(string, int, int) {}
func (r *recordingReporter) OnJobComplete(summary Summary) { r.completed = &summary }
func (r *recordingReporter) OnJobError(err error) { r.errs = append(r.errs, err) }

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "odds.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func newMockRunner(t *testing.T) (*Runner, sqlmock.Sqlmock, *fakeInvalidator, *fakePublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cache := &fakeInvalidator{}
	pub := &fakePublisher{}
	runner := NewRunner(store.NewDatabaseFromDB(db), RunnerConfig{Cache: cache, Publisher: pub})
	return runner, mock, cache, pub
}

func TestRunner_LoadsInOneTransaction(t *testing.T) {
	runner, mock, cache, pub := newMockRunner(t)
	path := writeSample(t)
	gameID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO games").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT api_game_id, game_id FROM games").
		WillReturnRows(sqlmock.NewRows([]string{"api_game_id", "game_id"}).
			AddRow("20240101_TeamA_TeamB", gameID.String()))
	mock.ExpectExec("INSERT INTO odds").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	reporter := &recordingReporter{}
	summary, err := runner.Run(context.Background(), JobSpec{FilePath: path}, reporter)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.RowsRead != 3 || summary.RowsSkipped != 1 {
		t.Errorf("expected 3 read / 1 skipped, got %d / %d", summary.RowsRead, summary.RowsSkipped)
	}
	if summary.GamesParsed != 2 || summary.OddsParsed != 6 {
		t.Errorf("expected 2 games / 6 odds parsed, got %d / %d", summary.GamesParsed, summary.OddsParsed)
	}
	if summary.GamesLoaded != 1 || summary.OddsLoaded != 3 || summary.OddsSkipped != 0 {
		t.Errorf("unexpected load counts %+v", summary)
	}

	if !reporter.started || reporter.completed == nil {
		t.Error("expected start and complete callbacks")
	}
	if cache.calls != 1 {
		t.Errorf("expected one cache invalidation, got %d", cache.calls)
	}
	if len(pub.events) != 1 || pub.events[0].Source != "odds.csv" || pub.events[0].Odds != 3 {
		t.Errorf("unexpected events %+v", pub.events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunner_RollsBackOnChunkFailure(t *testing.T) {
	runner, mock, cache, pub := newMockRunner(t)
	path := writeSample(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO games").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT api_game_id, game_id FROM games").
		WillReturnRows(sqlmock.NewRows([]string{"api_game_id", "game_id"}).
			AddRow("20240101_TeamA_TeamB", uuid.New().String()))
	mock.ExpectExec("INSERT INTO odds").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	reporter := &recordingReporter{}
	_, err := runner.Run(context.Background(), JobSpec{FilePath: path}, reporter)
	if err == nil {
		t.Fatal("expected error")
	}

	if len(reporter.errs) != 1 || reporter.completed != nil {
		t.Errorf("expected one error callback and no completion, got %v / %v", reporter.errs, reporter.completed)
	}
	if cache.calls != 0 || len(pub.events) != 0 {
		t.Error("hooks must not run when the transaction rolls back")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunner_DryRunWritesNothing(t *testing.T) {
	runner, mock, cache, _ := newMockRunner(t)
	path := writeSample(t)

	summary, err := runner.Run(context.Background(), JobSpec{FilePath: path, DryRun: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.GamesParsed != 2 || summary.GamesLoaded != 0 {
		t.Errorf("unexpected dry-run summary %+v", summary)
	}
	if cache.calls != 0 {
		t.Error("dry run must not invalidate the cache")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRunner_MissingFile(t *testing.T) {
	runner, _, _, _ := newMockRunner(t)

	_, err := runner.Run(context.Background(), JobSpec{FilePath: filepath.Join(t.TempDir(), "missing.csv")}, nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRunner_DryRunWithoutDatabase(t *testing.T) {
	runner := NewRunner(nil, RunnerConfig{})
	path := writeSample(t)

	summary, err := runner.Run(context.Background(), JobSpec{FilePath: path, DryRun: true}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.GamesParsed != 2 || summary.OddsParsed != 6 || summary.RowsSkipped != 1 {
		t.Errorf("unexpected dry-run summary %+v", summary)
	}

	if _, err := runner.Run(context.Background(), JobSpec{FilePath: path}, nil); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}
