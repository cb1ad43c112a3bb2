package oddsdata

import (
	"fmt"
	"time"

	"github.com/fortuna/pickvs/internal/store"
)

// GameRecord is one game as derived from a source row, keyed by APIGameID.
type GameRecord struct {
	APIGameID     string
	HomeTeam      string
	AwayTeam      string
	GameTimestamp time.Time
	Status        store.GameStatus
	HomeScore     *int
	AwayScore     *int
}

// Validate checks the record invariants: a Finished game carries both
// scores, a Scheduled game carries neither.
func (g GameRecord) Validate() error {
	if g.APIGameID == "" {
		return fmt.Errorf("api_game_id is empty")
	}
	if g.HomeTeam == "" || g.AwayTeam == "" {
		return fmt.Errorf("game %s: team name is empty", g.APIGameID)
	}

	switch g.Status {
	case store.GameStatusFinished:
		if g.HomeScore == nil || g.AwayScore == nil {
			return fmt.Errorf("game %s: finished game without both scores", g.APIGameID)
		}
		if *g.HomeScore < 0 || *g.AwayScore < 0 {
			return fmt.Errorf("game %s: negative score", g.APIGameID)
		}
	case store.GameStatusScheduled:
		if g.HomeScore != nil || g.AwayScore != nil {
			return fmt.Errorf("game %s: scheduled game with a score", g.APIGameID)
		}
	default:
		return fmt.Errorf("game %s: invalid status %v", g.APIGameID, g.Status)
	}

	return nil
}

// OddsRecord is one market for one game, keyed by (APIGameID, MarketType).
// LineValue is nil for moneyline and set for spread and totals.
type OddsRecord struct {
	APIGameID  string
	MarketType store.MarketType
	HomeOdds   float64
	AwayOdds   float64
	LineValue  *float64
}

// Result holds the parser output. Games and Odds are in row order; each
// physical game normally appears twice, once per team perspective.
type Result struct {
	Games         []GameRecord
	Odds          []OddsRecord
	RowsRead      int
	RowsSkipped   int
	MalformedRows int // skipped rows the CSV reader could not split
}
