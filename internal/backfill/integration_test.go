package backfill

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/store"
	"github.com/fortuna/pickvs/internal/store/repository"
)

// openTestDB connects to PICKVS_TEST_DSN and truncates the game tables.
// Tests and benchmarks using it are skipped when the variable is unset.
func openTestDB(tb testing.TB) *store.Database {
	tb.Helper()

	dsn := os.Getenv("PICKVS_TEST_DSN")
	if dsn == "" {
		tb.Skip("PICKVS_TEST_DSN not set")
	}
	if testing.Short() {
		tb.Skip("skipping database test in short mode")
	}

	db, err := store.NewDatabase(dsn)
	if err != nil {
		tb.Fatalf("connect: %v", err)
	}
	tb.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	truncate(tb, db)
	return db
}

func truncate(tb testing.TB, db *store.Database) {
	tb.Helper()
	if _, err := db.DB().Exec("TRUNCATE games CASCADE"); err != nil {
		tb.Fatalf("truncate: %v", err)
	}
}

func countRows(tb testing.TB, db *store.Database, table string) int {
	tb.Helper()
	var n int
	if err := db.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestIntegration_LoadIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	games, odds := fixture(1200)

	load := func() GameKeyMap {
		var keys GameKeyMap
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			keys, err = LoadGames(ctx, repository.NewGameRepository(tx), games, 0)
			if err != nil {
				return err
			}
			_, err = LoadOdds(ctx, repository.NewOddsRepository(tx), odds, keys, 0)
			return err
		})
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return keys
	}

	first := load()
	second := load()

	if got := countRows(t, db, "games"); got != 1200 {
		t.Errorf("expected 1200 games, got %d", got)
	}
	if got := countRows(t, db, "odds"); got != 3600 {
		t.Errorf("expected 3600 odds, got %d", got)
	}
	for _, g := range games {
		a, _ := first.Lookup(g.APIGameID)
		b, _ := second.Lookup(g.APIGameID)
		if a != b {
			t.Fatalf("mapping changed for %s", g.APIGameID)
		}
	}
}

func TestIntegration_FailedLoadRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	games, odds := fixture(10)
	odds[4].HomeOdds = 0.5 // violates home_odds > 1

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		keys, err := LoadGames(ctx, repository.NewGameRepository(tx), games, 0)
		if err != nil {
			return err
		}
		_, err = LoadOdds(ctx, repository.NewOddsRepository(tx), odds, keys, 0)
		return err
	})
	if err == nil {
		t.Fatal("expected check constraint failure")
	}

	if got := countRows(t, db, "games"); got != 0 {
		t.Errorf("expected games to roll back, found %d", got)
	}
}

func BenchmarkLoadBatched(b *testing.B) {
	db := openTestDB(b)
	ctx := context.Background()
	games, odds := fixture(2000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		keys, err := LoadGames(ctx, repository.NewGameRepository(db.DB()), games, 0)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := LoadOdds(ctx, repository.NewOddsRepository(db.DB()), odds, keys, 0); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadRowByRow(b *testing.B) {
	db := openTestDB(b)
	ctx := context.Background()
	games, odds := fixture(2000)

	gameRepo := repository.NewGameRepository(db.DB())
	oddsRepo := repository.NewOddsRepository(db.DB())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ids := make(map[string]uuid.UUID, len(games))
		for _, g := range games {
			id, err := gameRepo.UpsertGame(ctx, g)
			if err != nil {
				b.Fatal(err)
			}
			ids[g.APIGameID] = id
		}
		for _, o := range odds {
			row := repository.OddsRow{
				GameID:     ids[o.APIGameID],
				MarketType: o.MarketType,
				HomeOdds:   o.HomeOdds,
				AwayOdds:   o.AwayOdds,
				LineValue:  o.LineValue,
			}
			if err := oddsRepo.UpsertOdd(ctx, row); err != nil {
				b.Fatal(err)
			}
		}
	}
}
