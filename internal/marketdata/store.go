package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Bar is one daily close for one ticker.
type Bar struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Store is an in-memory daily bar table keyed by ticker. The trading
// calendar is the sorted union of all loaded dates; a ticker without a
// bar on a calendar date reads as NaN and is filled downstream.
type Store struct {
	bars     map[string][]Bar
	calendar []time.Time
	log      *logger.Logger
}

// NewStore creates an empty store.
func NewStore(log *logger.Logger) *Store {
	return &Store{
		bars: make(map[string][]Bar),
		log:  log,
	}
}

// AddSeries registers a bar series for a ticker and merges its dates
// into the calendar. Bars must be in chronological order.
func (s *Store) AddSeries(ticker string, bars []Bar) error {
	ticker = strings.ToUpper(ticker)
	if len(bars) == 0 {
		return fmt.Errorf("empty bar series for %s", ticker)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("bars for %s not in chronological order at %s",
				ticker, bars[i].Date.Format("2006-01-02"))
		}
	}

	s.bars[ticker] = bars
	s.mergeCalendar(bars)
	return nil
}

// LoadDir loads every *.csv file in dir as one ticker's bar series,
// named after the file. Returns the number of series loaded.
func (s *Store) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read bar directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}

		ticker := strings.TrimSuffix(entry.Name(), ".csv")
		path := filepath.Join(dir, entry.Name())

		f, err := os.Open(path)
		if err != nil {
			return loaded, fmt.Errorf("open %s: %w", path, err)
		}
		bars, err := ParseBarCSV(f)
		f.Close()
		if err != nil {
			return loaded, fmt.Errorf("parse %s: %w", path, err)
		}

		if err := s.AddSeries(ticker, bars); err != nil {
			return loaded, err
		}
		loaded++
	}

	s.log.WithFields(map[string]interface{}{
		"dir":     dir,
		"tickers": loaded,
		"bars":    len(s.calendar),
	}).Info("Bar directory loaded")

	return loaded, nil
}

// HasTicker reports whether a series is loaded for the ticker.
func (s *Store) HasTicker(ticker string) bool {
	_, ok := s.bars[strings.ToUpper(ticker)]
	return ok
}

// Tickers returns the loaded tickers, sorted.
func (s *Store) Tickers() []string {
	out := make([]string, 0, len(s.bars))
	for t := range s.bars {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Calendar returns the trading calendar covered by the store.
func (s *Store) Calendar() []time.Time {
	out := make([]time.Time, len(s.calendar))
	copy(out, s.calendar)
	return out
}

// CalendarBetween returns calendar dates in [start, end], inclusive.
func (s *Store) CalendarBetween(start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range s.calendar {
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// PriceAt returns the close for a ticker on an exact calendar date.
func (s *Store) PriceAt(date time.Time, ticker string) (float64, bool) {
	series, ok := s.bars[strings.ToUpper(ticker)]
	if !ok {
		return 0, false
	}

	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Date.Before(date)
	})
	if i < len(series) && series[i].Date.Equal(date) {
		return series[i].Close, true
	}
	return 0, false
}

// LastPriceOn returns the most recent close at or before the given
// date, so a ticker without a bar on the exact date still prices off
// its last trade.
func (s *Store) LastPriceOn(date time.Time, ticker string) (float64, bool) {
	series, ok := s.bars[strings.ToUpper(ticker)]
	if !ok {
		return 0, false
	}

	i := sort.Search(len(series), func(i int) bool {
		return series[i].Date.After(date)
	})
	if i == 0 {
		return 0, false
	}
	return series[i-1].Close, true
}

// WindowEnding builds a price window of exactly barCount calendar bars
// ending at date, inclusive. Cells with no bar stay NaN.
func (s *Store) WindowEnding(date time.Time, tickers []string, barCount int) (*contracts.PriceWindow, error) {
	if barCount < 1 {
		return nil, &contracts.ShapeMismatchError{
			Msg: fmt.Sprintf("window of %d bars requested", barCount),
		}
	}

	end := sort.Search(len(s.calendar), func(i int) bool {
		return s.calendar[i].After(date)
	})
	if end < barCount {
		return nil, fmt.Errorf("only %d calendar bars available before %s, need %d",
			end, date.Format("2006-01-02"), barCount)
	}

	dates := make([]time.Time, barCount)
	copy(dates, s.calendar[end-barCount:end])

	window := contracts.NewPriceWindow(dates, tickers)
	for j, ticker := range tickers {
		for i, d := range dates {
			if px, ok := s.PriceAt(d, ticker); ok {
				window.Prices[i][j] = px
			}
		}
	}
	return window, nil
}

// mergeCalendar merges the series dates into the sorted calendar.
func (s *Store) mergeCalendar(bars []Bar) {
	seen := make(map[time.Time]struct{}, len(s.calendar))
	for _, d := range s.calendar {
		seen[d] = struct{}{}
	}

	changed := false
	for _, b := range bars {
		if _, ok := seen[b.Date]; !ok {
			s.calendar = append(s.calendar, b.Date)
			seen[b.Date] = struct{}{}
			changed = true
		}
	}
	if changed {
		sort.Slice(s.calendar, func(i, j int) bool {
			return s.calendar[i].Before(s.calendar[j])
		})
	}
}

// ParseBarCSV reads a daily bar CSV. The header must contain Date and
// Close columns (case-insensitive); other columns are ignored, so both
// two-column exports and full OHLCV files load.
func ParseBarCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	dateCol, closeCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("header %v lacks Date/Close columns", header)
	}

	var bars []Bar
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := time.Parse("2006-01-02", row[dateCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(bars)+2, err)
		}
		px, err := strconv.ParseFloat(row[closeCol], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(bars)+2, err)
		}

		bars = append(bars, Bar{Date: date, Close: px})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
