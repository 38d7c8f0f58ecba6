package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quantfolio/reindexer/internal/contracts"
	"github.com/quantfolio/reindexer/pkg/logger"
)

// Universe maps sector labels to their member tickers. Sector order is
// fixed at load time so that every matrix keyed by sector (index rows,
// optimizer output) aligns the same way on every run.
type Universe struct {
	Name string

	sectorLabels []string
	sectors      map[string][]string
	invalid      []InvalidTicker
	invalidSeen  map[string]bool
}

// InvalidTicker records a ticker removed during validation.
type InvalidTicker struct {
	Ticker string `json:"ticker"`
	Sector string `json:"sector"`
	Reason string `json:"reason"`
}

// Load reads a sector universe from a CSV file with a "ticker,sector"
// header row.
func Load(name, csvPath string) (*Universe, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open universe csv: %w", err)
	}
	defer f.Close()

	return Parse(name, f)
}

// Parse reads a sector universe from CSV content.
func Parse(name string, r io.Reader) (*Universe, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read universe header: %w", err)
	}

	tickerCol, sectorCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "ticker":
			tickerCol = i
		case "sector":
			sectorCol = i
		}
	}
	if tickerCol < 0 || sectorCol < 0 {
		return nil, fmt.Errorf("universe csv must have ticker and sector columns, got %v", header)
	}

	u := &Universe{
		Name:        name,
		sectors:     make(map[string][]string),
		invalidSeen: make(map[string]bool),
	}

	seen := make(map[string]string) // ticker -> sector
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read universe row: %w", err)
		}

		ticker := strings.ToUpper(strings.TrimSpace(row[tickerCol]))
		sector := strings.TrimSpace(row[sectorCol])
		if ticker == "" || sector == "" {
			continue
		}

		// A ticker belongs to at most one sector at a time.
		if prev, ok := seen[ticker]; ok {
			if prev != sector {
				return nil, fmt.Errorf("ticker %s assigned to both %s and %s", ticker, prev, sector)
			}
			continue
		}
		seen[ticker] = sector

		if _, ok := u.sectors[sector]; !ok {
			u.sectorLabels = append(u.sectorLabels, sector)
		}
		u.sectors[sector] = append(u.sectors[sector], ticker)
	}

	if len(u.sectorLabels) == 0 {
		return nil, fmt.Errorf("universe %s has no sectors", name)
	}

	return u, nil
}

// SectorLabels returns sector labels in their stable load order.
func (u *Universe) SectorLabels() []string {
	out := make([]string, len(u.sectorLabels))
	copy(out, u.sectorLabels)
	return out
}

// Tickers returns the member tickers of a sector.
func (u *Universe) Tickers(sector string) []string {
	members := u.sectors[sector]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// UniqueTickers returns every ticker across all sectors, in sector then
// member order.
func (u *Universe) UniqueTickers() []string {
	var out []string
	for _, label := range u.sectorLabels {
		out = append(out, u.sectors[label]...)
	}
	return out
}

// SectorCount returns the number of sectors.
func (u *Universe) SectorCount() int {
	return len(u.sectorLabels)
}

// RemoveTicker removes a ticker from a sector and records it as invalid.
// Idempotent: a (ticker, sector) pair is recorded exactly once.
func (u *Universe) RemoveTicker(ticker, sector, reason string) {
	key := ticker + "|" + sector
	if u.invalidSeen[key] {
		return
	}
	u.invalidSeen[key] = true
	u.invalid = append(u.invalid, InvalidTicker{Ticker: ticker, Sector: sector, Reason: reason})

	members := u.sectors[sector]
	for i, t := range members {
		if t == ticker {
			u.sectors[sector] = append(members[:i], members[i+1:]...)
			break
		}
	}
}

// InvalidTickers returns the tickers removed during validation.
func (u *Universe) InvalidTickers() []InvalidTicker {
	out := make([]InvalidTicker, len(u.invalid))
	copy(out, u.invalid)
	return out
}

// Validate prunes tickers the execution layer cannot resolve or trade.
// Resolution failures are recoverable per ticker; a sector emptied out
// entirely is fatal because its synthetic index would have no basket.
func (u *Universe) Validate(md contracts.MarketData, log *logger.Logger) error {
	for _, sector := range u.sectorLabels {
		for _, ticker := range u.Tickers(sector) {
			if _, err := md.Resolve(ticker); err != nil {
				resErr := &contracts.UniverseResolutionError{Ticker: ticker, Sector: sector, Err: err}
				log.WithFields(map[string]interface{}{
					"ticker": ticker,
					"sector": sector,
				}).Warn("Ticker failed resolution, removing from universe")
				u.RemoveTicker(ticker, sector, resErr.Err.Error())
				continue
			}

			if !md.CanTrade(ticker) {
				log.WithFields(map[string]interface{}{
					"ticker": ticker,
					"sector": sector,
				}).Warn("Ticker not tradeable, removing from universe")
				u.RemoveTicker(ticker, sector, "not tradeable")
			}
		}

		if len(u.sectors[sector]) == 0 {
			return fmt.Errorf("sector %s has no tradeable tickers left", sector)
		}
	}

	log.WithFields(map[string]interface{}{
		"universe": u.Name,
		"sectors":  len(u.sectorLabels),
		"tickers":  len(u.UniqueTickers()),
		"invalid":  len(u.invalid),
	}).Info("Universe validated")

	return nil
}
