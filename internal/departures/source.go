// Package departures turns one configured (stop, post, line) into today's
// scheduled departures, reading the daily cache first and the timetable API
// on a miss.
package departures

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/clock"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/metrics"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/store"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/transitapi"
)

// Fetcher retrieves the raw timetable payload for one line at one stop post.
// *transitapi.Client satisfies it.
type Fetcher interface {
	Timetable(ctx context.Context, stopID, stopPost, line string) (json.RawMessage, error)
}

// Source serves departures from the daily cache, falling back to the Fetcher.
type Source struct {
	fetcher Fetcher
	store   store.Store
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewSource creates a Source. m and logger may be nil.
func NewSource(fetcher Fetcher, st store.Store, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Source {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Source{
		fetcher: fetcher,
		store:   st,
		clock:   clk,
		metrics: m,
		logger:  logging.Component(logger, "departures"),
	}
}

// GetOrFetch returns today's departures for line at the stop post, as of
// the source clock.
func (s *Source) GetOrFetch(ctx context.Context, stopID, stopPost, line string) ([]models.DepartureEntry, error) {
	return s.GetOrFetchAt(ctx, stopID, stopPost, line, s.clock.Now())
}

// GetOrFetchAt returns the departures of now's service day. The cache key
// and the departure dates both derive from now. Every failure is a
// *FetchError; cache write failures are not failures.
func (s *Source) GetOrFetchAt(ctx context.Context, stopID, stopPost, line string, now time.Time) ([]models.DepartureEntry, error) {
	key := store.NewKey(stopID, stopPost, line, now)
	logger := s.logger.With(slog.String("key", key.String()))

	if payload, ok := s.lookup(ctx, key, logger); ok {
		logger.Debug("cache hit")
		return s.normalize(payload, stopID, stopPost, line, now)
	}

	raw, fetchErr := s.acquire(ctx, stopID, stopPost, line)
	if fetchErr != nil {
		s.metrics.ObserveFetch(fetchErr.Kind.String())
		return nil, fetchErr
	}

	if err := s.store.Put(ctx, key, raw); err != nil {
		s.metrics.ObserveCacheWriteFailure()
		logging.LogError(logger, "cache write failed", err)
	}

	entries, err := s.normalize(raw, stopID, stopPost, line, now)
	var outcome *FetchError
	if errors.As(err, &outcome) {
		s.metrics.ObserveFetch(outcome.Kind.String())
		return nil, err
	}
	s.metrics.ObserveFetch(metrics.OutcomeOK)
	return entries, nil
}

// Fetch queries the API directly, bypassing and not updating the cache.
func (s *Source) Fetch(ctx context.Context, stopID, stopPost, line string) ([]models.DepartureEntry, error) {
	raw, fetchErr := s.acquire(ctx, stopID, stopPost, line)
	if fetchErr != nil {
		return nil, fetchErr
	}
	return s.normalize(raw, stopID, stopPost, line, s.clock.Now())
}

// lookup returns the cached payload for key. Entries that are not a JSON
// array are reported as misses so they get refetched and overwritten.
func (s *Source) lookup(ctx context.Context, key store.Key, logger *slog.Logger) ([]byte, bool) {
	payload, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logging.LogError(logger, "cache read failed", err)
		}
		s.metrics.ObserveCacheLookup(metrics.CacheMiss)
		return nil, false
	}

	var probe []json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		s.metrics.ObserveCacheLookup(metrics.CacheCorrupt)
		logger.Warn("discarding undecodable cache entry", slog.String("error", err.Error()))
		return nil, false
	}

	s.metrics.ObserveCacheLookup(metrics.CacheHit)
	return payload, true
}

func (s *Source) acquire(ctx context.Context, stopID, stopPost, line string) (json.RawMessage, *FetchError) {
	raw, err := s.fetcher.Timetable(ctx, stopID, stopPost, line)
	if err == nil {
		return raw, nil
	}

	fetchErr := &FetchError{StopID: stopID, StopPost: stopPost, Line: line, Err: err}
	var apiErr *transitapi.APIError
	if errors.As(err, &apiErr) {
		fetchErr.Kind = KindAPI
	} else {
		fetchErr.Kind = KindTransport
	}

	s.logger.Warn("timetable fetch failed",
		slog.String("stop_id", stopID),
		slog.String("stop_post", stopPost),
		slog.String("line", line),
		slog.String("kind", fetchErr.Kind.String()),
		slog.String("error", err.Error()))
	return nil, fetchErr
}

func (s *Source) normalize(raw []byte, stopID, stopPost, line string, now time.Time) ([]models.DepartureEntry, error) {
	entries, dropped, err := Normalize(raw, line, now)
	s.metrics.ObserveDroppedRecords(dropped)
	if dropped > 0 {
		s.logger.Debug("dropped malformed trips", slog.String("line", line), slog.Int("count", dropped))
	}
	if err != nil {
		return nil, &FetchError{Kind: KindSchema, StopID: stopID, StopPost: stopPost, Line: line, Err: err}
	}
	if len(entries) == 0 {
		return nil, &FetchError{Kind: KindEmpty, StopID: stopID, StopPost: stopPost, Line: line}
	}
	return entries, nil
}
