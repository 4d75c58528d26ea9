// Package board ranks today's departures across every configured stop for a
// single render pass.
package board

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
)

// Provider returns the departures of now's service day for one line at one
// stop post. *departures.Source satisfies it.
type Provider interface {
	GetOrFetchAt(ctx context.Context, stopID, stopPost, line string, now time.Time) ([]models.DepartureEntry, error)
}

// Board holds the immutable stop list and the row cap.
type Board struct {
	stops    []appconf.StopConfig
	provider Provider
	maxRows  int
	logger   *slog.Logger
}

// New creates a Board. maxRows <= 0 means appconf.DefaultMaxRows.
func New(stops []appconf.StopConfig, provider Provider, maxRows int, logger *slog.Logger) *Board {
	if maxRows <= 0 {
		maxRows = appconf.DefaultMaxRows
	}
	return &Board{
		stops:    stops,
		provider: provider,
		maxRows:  maxRows,
		logger:   logging.Component(logger, "board"),
	}
}

// Prepare collects every stop and line in configured order, keeps the
// departures inside each stop's (hide_before, horizon] window and returns
// them sorted by minutes to departure together with one error per failed
// line. A failed line never aborts the pass.
func (b *Board) Prepare(ctx context.Context, now time.Time) ([]models.RankedRow, []error) {
	var rows []models.RankedRow
	var errs []error

	for _, stop := range b.stops {
		label := stop.DisplayLabel()
		for _, line := range stop.Lines {
			entries, err := b.provider.GetOrFetchAt(ctx, stop.StopID, stop.StopPost, line, now)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			for _, entry := range entries {
				if row, ok := Rank(entry, stop, label, now); ok {
					rows = append(rows, row)
				}
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].MinutesToDeparture < rows[j].MinutesToDeparture
	})
	if len(rows) > b.maxRows {
		rows = rows[:b.maxRows]
	}

	b.logger.Debug("board prepared",
		slog.Int("rows", len(rows)),
		slog.Int("errors", len(errs)))
	return rows, errs
}

// Rank places entry relative to now. It reports false when the departure
// falls outside the stop's visibility window.
func Rank(entry models.DepartureEntry, stop appconf.StopConfig, label string, now time.Time) (models.RankedRow, bool) {
	minutes := MinutesUntil(entry.ScheduledAt, now)
	if minutes <= stop.HideBeforeMinutes || minutes > stop.HorizonMinutes {
		return models.RankedRow{}, false
	}
	return models.RankedRow{
		Label:              label,
		Line:               entry.Line,
		Destination:        entry.Destination,
		MinutesToDeparture: minutes,
		MinutesToLeave:     minutes - stop.WalkMinutes,
	}, true
}

// MinutesUntil is floor((at - now) / 1 minute), so a departure 30s in the
// past is -1.
func MinutesUntil(at, now time.Time) int {
	return int(math.Floor(at.Sub(now).Seconds() / 60))
}
