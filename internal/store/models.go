package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GameStatus is the lifecycle state of a game as persisted in games.status
type GameStatus int

const (
	GameStatusScheduled GameStatus = iota + 1
	GameStatusFinished
)

var gameStatusNames = map[GameStatus]string{
	GameStatusScheduled: "Scheduled",
	GameStatusFinished:  "Finished",
}

// String returns the storage value for the status
func (s GameStatus) String() string {
	if name, ok := gameStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameStatus(%d)", int(s))
}

// ParseGameStatus maps a stored value back to a GameStatus
func ParseGameStatus(value string) (GameStatus, error) {
	for status, name := range gameStatusNames {
		if name == value {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown game status %q", value)
}

// MarshalText implements encoding.TextMarshaler for JSON responses
func (s GameStatus) MarshalText() ([]byte, error) {
	if _, ok := gameStatusNames[s]; !ok {
		return nil, fmt.Errorf("invalid game status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *GameStatus) UnmarshalText(text []byte) error {
	status, err := ParseGameStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// MarketType identifies one of the three markets tracked per game
type MarketType int

const (
	MarketMoneyline MarketType = iota + 1
	MarketSpread
	MarketTotals
)

var marketTypeNames = map[MarketType]string{
	MarketMoneyline: "moneyline",
	MarketSpread:    "spread",
	MarketTotals:    "totals",
}

// MarketTypes lists every market in storage order
var MarketTypes = []MarketType{MarketMoneyline, MarketSpread, MarketTotals}

// String returns the storage value for the market
func (m MarketType) String() string {
	if name, ok := marketTypeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MarketType(%d)", int(m))
}

// ParseMarketType maps a stored value back to a MarketType
func ParseMarketType(value string) (MarketType, error) {
	for market, name := range marketTypeNames {
		if name == value {
			return market, nil
		}
	}
	return 0, fmt.Errorf("unknown market type %q", value)
}

// MarshalText implements encoding.TextMarshaler for JSON responses
func (m MarketType) MarshalText() ([]byte, error) {
	if _, ok := marketTypeNames[m]; !ok {
		return nil, fmt.Errorf("invalid market type %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *MarketType) UnmarshalText(text []byte) error {
	market, err := ParseMarketType(string(text))
	if err != nil {
		return err
	}
	*m = market
	return nil
}

// Game represents a row in games
type Game struct {
	GameID        uuid.UUID     `json:"game_id" db:"game_id"`
	APIGameID     string        `json:"api_game_id" db:"api_game_id"`
	HomeTeam      string        `json:"home_team" db:"home_team"`
	AwayTeam      string        `json:"away_team" db:"away_team"`
	GameTimestamp time.Time     `json:"game_timestamp" db:"game_timestamp"`
	Status        GameStatus    `json:"status" db:"status"`
	HomeScore     sql.NullInt32 `json:"-" db:"home_score"`
	AwayScore     sql.NullInt32 `json:"-" db:"away_score"`
	FetchedAt     time.Time     `json:"fetched_at" db:"fetched_at"`
}

// Odds represents a row in odds
type Odds struct {
	GameID     uuid.UUID           `json:"-" db:"game_id"`
	MarketType MarketType          `json:"market_type" db:"market_type"`
	HomeOdds   decimal.Decimal     `json:"home_odds" db:"home_odds"`
	AwayOdds   decimal.Decimal     `json:"away_odds" db:"away_odds"`
	LineValue  decimal.NullDecimal `json:"line_value" db:"line_value"`
}

// GameWithOdds is the listing shape served by the upcoming games endpoint
type GameWithOdds struct {
	GameID        uuid.UUID  `json:"game_id"`
	HomeTeam      string     `json:"home_team"`
	AwayTeam      string     `json:"away_team"`
	GameTimestamp time.Time  `json:"game_timestamp"`
	Status        GameStatus `json:"status"`
	Odds          []Odds     `json:"odds"`
}

// User represents a row in users
type User struct {
	UserID       uuid.UUID       `json:"user_id" db:"user_id"`
	Username     string          `json:"username" db:"username"`
	Email        string          `json:"email" db:"email"`
	PasswordHash string          `json:"-" db:"password_hash"`
	TotalUnits   decimal.Decimal `json:"total_units" db:"total_units"`
	ROI          decimal.Decimal `json:"roi" db:"roi"`
	TotalPicks   int             `json:"total_picks" db:"total_picks"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Pick represents a row in picks
type Pick struct {
	PickID        uuid.UUID           `json:"pick_id" db:"pick_id"`
	UserID        uuid.UUID           `json:"-" db:"user_id"`
	GameID        uuid.UUID           `json:"game_id" db:"game_id"`
	MarketPicked  string              `json:"market_picked" db:"market_picked"`
	OutcomePicked string              `json:"outcome_picked" db:"outcome_picked"`
	OddsAtPick    decimal.Decimal     `json:"odds_at_pick" db:"odds_at_pick"`
	ResultUnits   decimal.NullDecimal `json:"result_units" db:"result_units"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}
