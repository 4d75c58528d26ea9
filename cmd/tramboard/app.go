package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/app"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/board"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/clock"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/departures"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/metrics"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/output"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/render"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/store"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/transitapi"
)

// nowEnvVar pins the board to a given instant.
const nowEnvVar = "TRAM_NOW"

// loadConfig reads the file and applies environment overrides.
func loadConfig(path string) (*appconf.Config, error) {
	cfg, err := appconf.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIConfig is loadConfig for commands that only talk to the API: a
// missing file falls back to defaults.
func loadAPIConfig(path string) (*appconf.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &appconf.Config{}
		cfg.ApplyDefaults()
		cfg.ApplyEnv(os.LookupEnv)
		return cfg, nil
	}
	return loadConfig(path)
}

func newAPIClient(cfg appconf.Config, logger *slog.Logger) *transitapi.Client {
	return transitapi.NewClient(transitapi.Config{
		BaseURL:             cfg.API.BaseURL,
		APIKey:              cfg.API.Key,
		TimetableResourceID: cfg.API.TimetableResourceID,
		LinesResourceID:     cfg.API.LinesResourceID,
		StopsResourceID:     cfg.API.StopsResourceID,
		Timeout:             cfg.API.Timeout,
		RequestsPerSecond:   cfg.API.RequestsPerSecond,
	}, logger)
}

// BuildApplication wires every component from cfg. It fails when the cache
// cannot be opened or the renderer has no icon.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := logging.NewLogger(cfg.Verbose, os.Stderr)

	loc := cfg.Location()
	clk := clock.NewOverrideClock(nowEnvVar, "", loc, clock.RealClock{Location: loc}, logger)
	m := metrics.NewWithLogger(logger)

	st, err := store.Open(context.Background(), cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open departure cache: %w", err)
	}

	renderer, err := render.New(render.Options{
		Width:            cfg.Canvas.Width,
		Height:           cfg.Canvas.Height,
		FontPath:         cfg.Assets.FontPath,
		IconPath:         cfg.Assets.IconPath,
		IconFallbackPath: cfg.Assets.IconFallbackPath,
		Logger:           logger,
	})
	if err != nil {
		logging.SafeCloseWithLogging(st, logger, "departure_cache")
		return nil, fmt.Errorf("failed to initialize renderer: %w", err)
	}

	api := newAPIClient(cfg, logger)
	source := departures.NewSource(api, st, clk, m, logger)

	return &app.Application{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Metrics:    m,
		Store:      st,
		API:        api,
		Board:      board.New(cfg.Stops, source, cfg.MaxRows, logger),
		Renderer:   renderer,
		Dispatcher: output.NewDispatcher(cfg.Mode, cfg.Output.Path, nil, logger),
	}, nil
}
