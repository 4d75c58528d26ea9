package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type stubFetcher struct {
	payloads map[string]string
	calls    int
}

func (f *stubFetcher) Timetable(_ context.Context, _, _, line string) (json.RawMessage, error) {
	f.calls++
	p, ok := f.payloads[line]
	if !ok {
		return nil, &transitapi.TransportError{Err: errors.New("connection refused")}
	}
	return json.RawMessage(p), nil
}

type testApp struct {
	app     *Application
	fetcher *stubFetcher
	store   store.Store
	out     string
	logs    *bytes.Buffer
}

func writeIcon(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tram.png")
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	img.SetGray(0, 0, color.Gray{Y: 255})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func newTestApp(t *testing.T, payloads map[string]string) *testApp {
	t.Helper()
	dir := t.TempDir()
	loc, err := time.LoadLocation("Europe/Warsaw")
	require.NoError(t, err)

	cfg := appconf.Config{
		Env:      appconf.Test,
		Mode:     appconf.ModeDebug,
		Timezone: "Europe/Warsaw",
		MaxRows:  10,
		Cache:    appconf.CacheConfig{Backend: "file", Dir: filepath.Join(dir, "cache"), PruneAfterDays: 2},
		Canvas:   appconf.CanvasConfig{Width: 800, Height: 480},
		Output:   appconf.OutputConfig{Path: filepath.Join(dir, "tram_board.png")},
		Metrics:  appconf.MetricsConfig{Textfile: filepath.Join(dir, "tramboard.prom")},
		Stops: []appconf.StopConfig{{
			Label:             "Rondo Daszyńskiego",
			StopID:            "5040",
			StopPost:          "07",
			Lines:             []string{"10", "11"},
			HorizonMinutes:    60,
			WalkMinutes:       5,
			HideBeforeMinutes: 3,
		}},
	}

	logs := &bytes.Buffer{}
	logger := logging.NewLogger(true, logs)
	clk := clock.NewMockClock(time.Date(2024, 6, 15, 8, 0, 0, 0, loc))
	m := metrics.New()

	st, err := store.NewFileStore(cfg.Cache.Dir)
	require.NoError(t, err)

	fetcher := &stubFetcher{payloads: payloads}
	source := departures.NewSource(fetcher, st, clk, m, logger)

	renderer, err := render.New(render.Options{Width: 800, Height: 480, IconPath: writeIcon(t), Logger: logger})
	require.NoError(t, err)

	return &testApp{
		app: &Application{
			Config:     cfg,
			Logger:     logger,
			Clock:      clk,
			Metrics:    m,
			Store:      st,
			Board:      board.New(cfg.Stops, source, cfg.MaxRows, logger),
			Renderer:   renderer,
			Dispatcher: output.NewDispatcher(cfg.Mode, cfg.Output.Path, nil, logger),
		},
		fetcher: fetcher,
		store:   st,
		out:     cfg.Output.Path,
		logs:    logs,
	}
}

func TestCompose(t *testing.T) {
	ta := newTestApp(t, map[string]string{
		"10": `[[{"key":"czas","value":"08:10:00"},{"key":"kierunek","value":"Centrum"}],
		        [{"key":"czas","value":"08:02:00"},{"key":"kierunek","value":"Centrum"}]]`,
	})

	snap, img := ta.app.Compose(context.Background())

	assert.NotEmpty(t, snap.RunID)
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, 10, snap.Rows[0].MinutesToDeparture)
	assert.Equal(t, 5, snap.Rows[0].MinutesToLeave)
	assert.Equal(t, []string{"network error 11@07: connection refused"}, snap.Messages)
	assert.Equal(t, image.Rect(0, 0, 800, 480), img.Bounds())
	assert.Equal(t, 1.0, testutil.ToFloat64(ta.app.Metrics.RowsRendered))
	assert.Equal(t, 1.0, testutil.ToFloat64(ta.app.Metrics.ErrorsRendered))
	assert.Contains(t, ta.logs.String(), "run_id="+snap.RunID)
}

func TestRenderOnce_WritesBoardAndMetrics(t *testing.T) {
	ta := newTestApp(t, map[string]string{
		"10": `[[{"key":"czas","value":"08:10:00"},{"key":"kierunek","value":"Centrum"}]]`,
		"11": `[[{"key":"czas","value":"08:20:00"},{"key":"kierunek","value":"Gocław"}]]`,
	})

	require.NoError(t, ta.app.RenderOnce(context.Background()))

	f, err := os.Open(ta.out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 480, cfg.Height)

	prom, err := os.ReadFile(ta.app.Config.Metrics.Textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `tramboard_fetches_total{outcome="ok"} 2`)
	assert.Contains(t, string(prom), "tramboard_rows_rendered 2")
}

func TestRenderOnce_SecondRunSameDayUsesCache(t *testing.T) {
	ta := newTestApp(t, map[string]string{
		"10": `[[{"key":"czas","value":"08:10:00"},{"key":"kierunek","value":"Centrum"}]]`,
		"11": `[]`,
	})
	ctx := context.Background()

	require.NoError(t, ta.app.RenderOnce(ctx))
	ta.app.Clock.(*clock.MockClock).Advance(time.Minute)
	require.NoError(t, ta.app.RenderOnce(ctx))

	assert.Equal(t, 2, ta.fetcher.calls)
}

func TestRenderOnce_PrunesOldKeys(t *testing.T) {
	ta := newTestApp(t, map[string]string{
		"10": `[[{"key":"czas","value":"08:10:00"},{"key":"kierunek","value":"Centrum"}]]`,
	})
	ctx := context.Background()
	old := store.Key{StopID: "5040", StopPost: "07", Line: "10", Date: "2024-06-12"}
	recent := store.Key{StopID: "5040", StopPost: "07", Line: "10", Date: "2024-06-13"}
	require.NoError(t, ta.store.Put(ctx, old, []byte(`[]`)))
	require.NoError(t, ta.store.Put(ctx, recent, []byte(`[]`)))

	require.NoError(t, ta.app.RenderOnce(ctx))

	_, err := ta.store.Get(ctx, old)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = ta.store.Get(ctx, recent)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(ta.app.Metrics.CachePrunedKeysTotal))
}

func TestRenderOnce_DispatchFailure(t *testing.T) {
	ta := newTestApp(t, map[string]string{})
	ta.app.Dispatcher = output.NewDispatcher(appconf.ModeDebug, filepath.Join(t.TempDir(), "missing", "x.png"), nil, nil)

	err := ta.app.RenderOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatching board")
	assert.Contains(t, ta.logs.String(), "board dispatch failed")
}

func TestMessages(t *testing.T) {
	got := Messages([]error{errors.New("a"), nil, errors.New("b")})
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Empty(t, Messages(nil))
}

func TestClose(t *testing.T) {
	assert.NoError(t, (&Application{}).Close())

	st, err := store.NewSQLiteStore(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	assert.NoError(t, (&Application{Store: st}).Close())
}
