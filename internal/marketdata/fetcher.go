package marketdata

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantfolio/reindexer/pkg/config"
	"github.com/quantfolio/reindexer/pkg/httputil"
	"github.com/quantfolio/reindexer/pkg/logger"
	"github.com/quantfolio/reindexer/pkg/redis"
)

// Fetcher downloads daily bar CSVs from a remote endpoint. Responses
// are cached in Redis so repeated runs over the same universe do not
// hammer the provider.
type Fetcher struct {
	http    *httputil.Client
	limiter *rate.Limiter
	cache   *redis.Cache
	baseURL string
	ttl     time.Duration
	log     *logger.Logger
}

// NewFetcher creates a fetcher from the market-data configuration.
func NewFetcher(cfg *config.Config, cache *redis.Cache, log *logger.Logger) *Fetcher {
	return &Fetcher{
		http:    httputil.New(log),
		limiter: rate.NewLimiter(rate.Limit(cfg.MarketData.RemoteRateLimit), 1),
		cache:   cache,
		baseURL: cfg.MarketData.RemoteURL,
		ttl:     cfg.MarketData.CacheTTL,
		log:     log,
	}
}

// FetchDaily returns the full daily bar history for one ticker.
func (f *Fetcher) FetchDaily(ctx context.Context, ticker string) ([]Bar, error) {
	if f.baseURL == "" {
		return nil, fmt.Errorf("no remote bar endpoint configured")
	}

	ticker = strings.ToUpper(ticker)
	cacheKey := "bars:" + ticker

	var cached []Bar
	if f.cache != nil {
		hit, err := f.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			f.log.WithError(err).Warn("Bar cache read failed")
		} else if hit {
			return cached, nil
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?s=%s&i=d", f.baseURL, strings.ToLower(ticker))
	resp, err := f.http.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bars for %s: %w", ticker, err)
	}

	bars, err := ParseBarCSV(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("remote returned no bars for %s", ticker)
	}

	if f.cache != nil {
		if err := f.cache.Set(ctx, cacheKey, bars, f.ttl); err != nil {
			f.log.WithError(err).Warn("Bar cache write failed")
		}
	}

	f.log.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   len(bars),
	}).Debug("Fetched remote bar series")

	return bars, nil
}

// Hydrate fetches any tickers the store is missing. Tickers already
// loaded from disk are skipped.
func (f *Fetcher) Hydrate(ctx context.Context, store *Store, tickers []string) error {
	for _, ticker := range tickers {
		if store.HasTicker(ticker) {
			continue
		}

		bars, err := f.FetchDaily(ctx, ticker)
		if err != nil {
			return err
		}
		if err := store.AddSeries(ticker, bars); err != nil {
			return err
		}
	}
	return nil
}
