package oddsdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fortuna/pickvs/internal/odds"
	"github.com/fortuna/pickvs/internal/store"
)

// Source column names
const (
	colDate              = "date"
	colTeam              = "team"
	colHomeVisitor       = "home/visitor"
	colOpponent          = "opponent"
	colScore             = "score"
	colOpponentScore     = "opponentScore"
	colMoneyLine         = "moneyLine"
	colOpponentMoneyLine = "opponentMoneyLine"
	colTotal             = "total"
	colSpread            = "spread"
)

// homeMarker in the home/visitor column means the row's team played at home.
const homeMarker = "vs"

const dateLayout = "2006-01-02"

var requiredColumns = []string{
	colDate, colTeam, colHomeVisitor, colOpponent, colScore, colOpponentScore,
	colMoneyLine, colOpponentMoneyLine, colTotal, colSpread,
}

// ErrNoHeader is returned when the source has no header row.
var ErrNoHeader = errors.New("source has no header")

// MissingColumnsError lists required columns absent from the header.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("source missing columns: %s", strings.Join(e.Columns, ", "))
}

// ErrUnterminatedQuote is returned when a quoted field never closes, so the
// reader swallowed every remaining line into one record.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// errSkipRow marks a row-level problem: the row is dropped and parsing continues.
var errSkipRow = errors.New("skip row")

// errMalformedRow is a row the CSV reader could not split into fields.
var errMalformedRow = fmt.Errorf("%w: malformed csv", errSkipRow)

// ParseFile parses a CSV file, or an .xlsx workbook (first sheet) with the
// same header, into game and odds records.
func ParseFile(path string) (*Result, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s: %w", path, err)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return parseWorkbook(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads comma-separated records with a header row.
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var openQuote *csv.ParseError
	return parseRows(header, func() ([]string, error) {
		record, err := reader.Read()
		if err == io.EOF && openQuote != nil {
			return nil, fmt.Errorf("%w: opened on line %d", ErrUnterminatedQuote, openQuote.StartLine)
		}
		openQuote = nil

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// a quote error spanning lines followed by EOF ate the rest of the file
			if errors.Is(parseErr.Err, csv.ErrQuote) && parseErr.Line > parseErr.StartLine {
				openQuote = parseErr
			}
			return nil, errMalformedRow
		}
		return record, err
	})
}

func parseWorkbook(path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	next := 1
	return parseRows(rows[0], func() ([]string, error) {
		if next >= len(rows) {
			return nil, io.EOF
		}
		row := rows[next]
		next++
		return row, nil
	})
}

// parseRows validates the header and then converts every data row returned
// by next until io.EOF.
func parseRows(header []string, next func() ([]string, error)) (*Result, error) {
	if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
		return nil, ErrNoHeader
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}

	result := &Result{}
	for {
		record, err := next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, errSkipRow) {
			result.RowsRead++
			result.RowsSkipped++
			if errors.Is(err, errMalformedRow) {
				result.MalformedRows++
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", result.RowsRead+2, err)
		}

		result.RowsRead++
		game, markets, err := parseRow(row{fields: record, index: index})
		if err != nil {
			result.RowsSkipped++
			continue
		}

		result.Games = append(result.Games, game)
		result.Odds = append(result.Odds, markets...)
	}

	return result, nil
}

type row struct {
	fields []string
	index  map[string]int
}

func (r row) get(col string) string {
	i := r.index[col]
	if i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

func (r row) intField(col string) (int, error) {
	v, err := strconv.Atoi(r.get(col))
	if err != nil {
		return 0, errSkipRow
	}
	return v, nil
}

// floatField accepts finite numbers only; ParseFloat also reads NaN and Inf.
func (r row) floatField(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.get(col), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errSkipRow
	}
	return v, nil
}

// parseRow derives one game and its three markets from a single row.
func parseRow(r row) (GameRecord, []OddsRecord, error) {
	isHome := r.get(colHomeVisitor) == homeMarker

	teamML, err := r.intField(colMoneyLine)
	if err != nil {
		return GameRecord{}, nil, err
	}
	opponentML, err := r.intField(colOpponentMoneyLine)
	if err != nil {
		return GameRecord{}, nil, err
	}
	// 0 means the upstream feed had no price
	if teamML == 0 || opponentML == 0 {
		return GameRecord{}, nil, errSkipRow
	}

	date, err := time.Parse(dateLayout, r.get(colDate))
	if err != nil {
		return GameRecord{}, nil, errSkipRow
	}

	teamScore, err := r.intField(colScore)
	if err != nil {
		return GameRecord{}, nil, err
	}
	opponentScore, err := r.intField(colOpponentScore)
	if err != nil {
		return GameRecord{}, nil, err
	}
	spread, err := r.floatField(colSpread)
	if err != nil {
		return GameRecord{}, nil, err
	}
	total, err := r.floatField(colTotal)
	if err != nil {
		return GameRecord{}, nil, err
	}

	homeTeam, awayTeam := r.get(colTeam), r.get(colOpponent)
	homeScore, awayScore := teamScore, opponentScore
	homeML, awayML := teamML, opponentML
	if !isHome {
		homeTeam, awayTeam = awayTeam, homeTeam
		homeScore, awayScore = awayScore, homeScore
		homeML, awayML = awayML, homeML
		spread = -spread
	}

	game := GameRecord{
		APIGameID:     GameID(date, homeTeam, awayTeam),
		HomeTeam:      homeTeam,
		AwayTeam:      awayTeam,
		GameTimestamp: date,
		Status:        store.GameStatusFinished,
		HomeScore:     &homeScore,
		AwayScore:     &awayScore,
	}
	if err := game.Validate(); err != nil {
		return GameRecord{}, nil, errSkipRow
	}

	markets := []OddsRecord{
		{
			APIGameID:  game.APIGameID,
			MarketType: store.MarketMoneyline,
			HomeOdds:   odds.ToDecimal(homeML),
			AwayOdds:   odds.ToDecimal(awayML),
		},
		{
			APIGameID:  game.APIGameID,
			MarketType: store.MarketSpread,
			HomeOdds:   odds.StandardJuice,
			AwayOdds:   odds.StandardJuice,
			LineValue:  &spread,
		},
		{
			APIGameID:  game.APIGameID,
			MarketType: store.MarketTotals,
			HomeOdds:   odds.StandardJuice,
			AwayOdds:   odds.StandardJuice,
			LineValue:  &total,
		},
	}

	return game, markets, nil
}

// GameID builds the natural key YYYYMMDD_HomeTeam_AwayTeam with spaces
// removed from team names.
func GameID(date time.Time, homeTeam, awayTeam string) string {
	return fmt.Sprintf("%s_%s_%s",
		date.Format("20060102"),
		strings.ReplaceAll(homeTeam, " ", ""),
		strings.ReplaceAll(awayTeam, " ", ""),
	)
}
