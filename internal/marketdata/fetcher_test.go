package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/reindexer/pkg/config"
	"github.com/quantfolio/reindexer/pkg/logger"
)

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		MarketData: config.MarketDataConfig{
			RemoteURL:       srv.URL,
			RemoteRateLimit: 1000,
			CacheTTL:        time.Hour,
		},
	}
	return NewFetcher(cfg, nil, logger.Nop())
}

func TestFetchDaily(t *testing.T) {
	var gotQuery string
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, "Date,Close\n2015-01-02,10\n2015-01-05,11\n")
	})

	bars, err := f.FetchDaily(context.Background(), "spy")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 10.0, bars[0].Close)
	assert.Equal(t, "s=spy&i=d", gotQuery)
}

func TestFetchDaily_EmptyBody(t *testing.T) {
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Date,Close\n")
	})

	_, err := f.FetchDaily(context.Background(), "SPY")
	assert.Error(t, err)
}

func TestFetchDaily_NoEndpoint(t *testing.T) {
	f := NewFetcher(&config.Config{
		MarketData: config.MarketDataConfig{RemoteRateLimit: 1},
	}, nil, logger.Nop())

	_, err := f.FetchDaily(context.Background(), "SPY")
	assert.Error(t, err)
}

func TestHydrate_SkipsLoadedTickers(t *testing.T) {
	calls := 0
	f := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, "Date,Close\n2015-01-02,10\n")
	})

	store := NewStore(logger.Nop())
	require.NoError(t, store.AddSeries("AAA", []Bar{{day(2015, 1, 2), 5}}))

	require.NoError(t, f.Hydrate(context.Background(), store, []string{"AAA", "BBB"}))
	assert.Equal(t, 1, calls)
	assert.True(t, store.HasTicker("BBB"))
}
