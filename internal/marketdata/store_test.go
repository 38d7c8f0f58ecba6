package marketdata

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/pkg/logger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseBarCSV(t *testing.T) {
	csv := "Date,Open,High,Low,Close,Volume\n" +
		"2015-01-02,10,11,9,10.5,1000\n" +
		"2015-01-05,10.5,12,10,11.0,1200\n"

	bars, err := ParseBarCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, day(2015, 1, 2), bars[0].Date)
	assert.Equal(t, 10.5, bars[0].Close)
	assert.Equal(t, 11.0, bars[1].Close)
}

func TestParseBarCSV_TwoColumnAndUnsorted(t *testing.T) {
	csv := "date,close\n2015-01-05,11\n2015-01-02,10\n"

	bars, err := ParseBarCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestParseBarCSV_MissingColumn(t *testing.T) {
	_, err := ParseBarCSV(strings.NewReader("date,open\n2015-01-02,10\n"))
	assert.Error(t, err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("AAA.csv", "date,close\n2015-01-02,10\n2015-01-05,11\n")
	write("bbb.csv", "date,close\n2015-01-05,20\n2015-01-06,21\n")
	write("notes.txt", "ignored")

	store := NewStore(logger.Nop())
	n, err := store.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Tickers are uppercased; calendar is the union of both series.
	assert.Equal(t, []string{"AAA", "BBB"}, store.Tickers())
	assert.Equal(t, []time.Time{day(2015, 1, 2), day(2015, 1, 5), day(2015, 1, 6)}, store.Calendar())

	px, ok := store.PriceAt(day(2015, 1, 5), "aaa")
	require.True(t, ok)
	assert.Equal(t, 11.0, px)

	_, ok = store.PriceAt(day(2015, 1, 6), "AAA")
	assert.False(t, ok)
}

func TestWindowEnding(t *testing.T) {
	store := NewStore(logger.Nop())
	require.NoError(t, store.AddSeries("AAA", []Bar{
		{day(2015, 1, 2), 10}, {day(2015, 1, 5), 11}, {day(2015, 1, 6), 12},
	}))
	require.NoError(t, store.AddSeries("BBB", []Bar{
		{day(2015, 1, 5), 20}, {day(2015, 1, 6), 21},
	}))

	window, err := store.WindowEnding(day(2015, 1, 6), []string{"AAA", "BBB"}, 3)
	require.NoError(t, err)
	require.Equal(t, 3, window.Bars())

	// BBB has no bar on the first calendar day: that cell stays NaN.
	assert.True(t, math.IsNaN(window.Prices[0][1]))
	assert.Equal(t, 10.0, window.Prices[0][0])
	assert.Equal(t, 21.0, window.Prices[2][1])
}

func TestWindowEnding_InsufficientBars(t *testing.T) {
	store := NewStore(logger.Nop())
	require.NoError(t, store.AddSeries("AAA", []Bar{
		{day(2015, 1, 2), 10}, {day(2015, 1, 5), 11},
	}))

	_, err := store.WindowEnding(day(2015, 1, 5), []string{"AAA"}, 5)
	assert.Error(t, err)
}

func TestAddSeries_OutOfOrderFails(t *testing.T) {
	store := NewStore(logger.Nop())
	err := store.AddSeries("AAA", []Bar{
		{day(2015, 1, 5), 11}, {day(2015, 1, 2), 10},
	})
	assert.Error(t, err)
}

func TestCalendarBetween(t *testing.T) {
	store := NewStore(logger.Nop())
	require.NoError(t, store.AddSeries("AAA", []Bar{
		{day(2015, 1, 2), 10}, {day(2015, 1, 5), 11}, {day(2015, 1, 6), 12}, {day(2015, 1, 7), 13},
	}))

	got := store.CalendarBetween(day(2015, 1, 5), day(2015, 1, 6))
	assert.Equal(t, []time.Time{day(2015, 1, 5), day(2015, 1, 6)}, got)
}
