// Package app holds the wired components and runs one board pass:
// rank, render, dispatch, then housekeeping.
package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/board"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/clock"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/metrics"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/output"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/render"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/store"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/transitapi"
)

// Application holds the dependencies of a board run and of the preview
// server. Everything is built once from Config by the entry point.
type Application struct {
	Config     appconf.Config
	Logger     *slog.Logger
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Store      store.Store
	API        *transitapi.Client
	Board      *board.Board
	Renderer   *render.Renderer
	Dispatcher *output.Dispatcher
}

// Snapshot is the ranked content of one pass.
type Snapshot struct {
	RunID    string
	Now      time.Time
	Rows     []models.RankedRow
	Messages []string
}

// Compose ranks departures as of the application clock and renders them.
func (app *Application) Compose(ctx context.Context) (Snapshot, *image.Paletted) {
	snap := Snapshot{RunID: uuid.NewString(), Now: app.Clock.Now()}
	logger := app.Logger.With(slog.String("run_id", snap.RunID))
	ctx = logging.WithLogger(ctx, logger)

	rows, errs := app.Board.Prepare(ctx, snap.Now)
	snap.Rows = rows
	snap.Messages = Messages(errs)

	start := time.Now()
	img := app.Renderer.Render(rows, snap.Messages)
	app.Metrics.ObserveRender(min(len(rows), render.TileSlots), len(snap.Messages), time.Since(start))

	logging.LogOperation(logger, "board_composed",
		slog.Time("now", snap.Now),
		slog.Int("rows", len(rows)),
		slog.Int("errors", len(errs)))
	return snap, img
}

// RenderOnce runs a full pass. Fetch failures end up on the board; only a
// failed dispatch is returned. Pruning and metrics export are best-effort.
func (app *Application) RenderOnce(ctx context.Context) error {
	snap, img := app.Compose(ctx)
	logger := app.Logger.With(slog.String("run_id", snap.RunID))

	if err := app.Dispatcher.Dispatch(ctx, img); err != nil {
		logging.LogError(logger, "board dispatch failed", err)
		return fmt.Errorf("dispatching board: %w", err)
	}

	app.prune(ctx, snap.Now, logger)

	app.Metrics.MarkRun(app.Clock.Now())
	if err := app.Metrics.WriteTextfile(app.Config.Metrics.Textfile); err != nil {
		logging.LogError(logger, "metrics export failed", err)
	}
	return nil
}

// prune drops cache keys older than cache.prune_after_days.
func (app *Application) prune(ctx context.Context, now time.Time, logger *slog.Logger) {
	days := app.Config.Cache.PruneAfterDays
	if days <= 0 || app.Store == nil {
		return
	}
	cutoff := clock.ServiceDate(now).AddDate(0, 0, -days)
	removed, err := app.Store.Prune(ctx, cutoff)
	if err != nil {
		logging.LogError(logger, "cache prune failed", err)
		return
	}
	app.Metrics.ObservePrunedKeys(removed)
	if removed > 0 {
		logger.Debug("pruned cache", slog.Int("removed", removed), slog.String("before", cutoff.Format(store.DateLayout)))
	}
}

// Close releases the cache store.
func (app *Application) Close() error {
	if app.Store == nil {
		return nil
	}
	return app.Store.Close()
}

// Messages renders per-line failures as board text.
func Messages(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			continue
		}
		out = append(out, err.Error())
	}
	return out
}
