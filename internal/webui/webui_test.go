package webui

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/app"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/board"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/clock"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/metrics"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/render"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/store"
)

var testNow = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

type staticProvider struct{}

func (staticProvider) GetOrFetchAt(_ context.Context, _, _, line string, _ time.Time) ([]models.DepartureEntry, error) {
	return []models.DepartureEntry{{ScheduledAt: testNow.Add(10 * time.Minute), Line: line, Destination: "Centrum"}}, nil
}

func newTestWebUI(t *testing.T, env appconf.Environment, logs io.Writer) *WebUI {
	t.Helper()

	iconPath := filepath.Join(t.TempDir(), "tram.png")
	f, err := os.Create(iconPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())

	logger := logging.NewLogger(false, logs)
	renderer, err := render.New(render.Options{Width: 800, Height: 480, IconPath: iconPath, Logger: logger})
	require.NoError(t, err)

	st, err := store.NewSQLiteStore(context.Background(), store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	stops := []appconf.StopConfig{{
		Label: "Rondo", StopID: "5040", StopPost: "07", Lines: []string{"10"},
		HorizonMinutes: 60, WalkMinutes: 5, HideBeforeMinutes: 3,
	}}

	return NewWithBoardInterval(&app.Application{
		Config:   appconf.Config{Env: env, Stops: stops},
		Logger:   logger,
		Clock:    clock.NewMockClock(testNow),
		Metrics:  metrics.New(),
		Store:    st,
		Board:    board.New(stops, staticProvider{}, 10, logger),
		Renderer: renderer,
	}, 0)
}

func TestBoardHandler(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)

	req := httptest.NewRequest(http.MethodGet, "/board.png", nil)
	rr := httptest.NewRecorder()
	webUI.Handler().ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("X-Board-Rows"))
	assert.NotEmpty(t, rr.Header().Get("X-Board-Run-ID"))

	img, err := png.Decode(rr.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 480), img.Bounds())
}

func TestHandler_Gzip(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)
	// enough content to clear the compression size threshold
	stop := webUI.Application.Config.Stops[0]
	for i := 0; i < 10; i++ {
		webUI.Application.Config.Stops = append(webUI.Application.Config.Stops, stop)
	}
	server := httptest.NewServer(webUI.Handler())
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/debug?dataType=stops", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")

	// a plain transport does not decompress when the header is set explicitly
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))

	zr, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(body), "5040")
}

func TestDebugIndexHandler_ProductionReturns404(t *testing.T) {
	webUI := &WebUI{
		Application: &app.Application{
			Config: appconf.Config{Env: appconf.Production},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/debug", nil)
	rr := httptest.NewRecorder()
	webUI.debugIndexHandler(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code, "Should return 404 in Production")
}

func TestDebugIndexHandler_DataTypes(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)

	tests := []struct {
		dataType string
		contains []string
	}{
		{dataType: "", contains: []string{"Board - Ranked Rows", "Centrum", "MinutesToLeave: (int) 5"}},
		{dataType: "board", contains: []string{"MinutesToDeparture: (int) 10"}},
		{dataType: "stops", contains: []string{"Configuration - Stops", "5040"}},
		{dataType: "geometry", contains: []string{"TileHeight: (int) 107"}},
		{dataType: "nope", contains: []string{"Choose a data type", "board, stops, geometry"}},
	}

	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/debug?dataType="+tt.dataType, nil)
			rr := httptest.NewRecorder()
			webUI.debugIndexHandler(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/html")
			for _, want := range tt.contains {
				assert.Contains(t, rr.Body.String(), want)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		webUI := newTestWebUI(t, appconf.Test, io.Discard)
		rr := httptest.NewRecorder()
		webUI.healthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("not wired", func(t *testing.T) {
		webUI := &WebUI{Application: &app.Application{}}
		rr := httptest.NewRecorder()
		webUI.healthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Contains(t, rr.Body.String(), "board pipeline not initialized")
	})

	t.Run("closed database", func(t *testing.T) {
		webUI := newTestWebUI(t, appconf.Test, io.Discard)
		require.NoError(t, webUI.Application.Store.Close())

		rr := httptest.NewRecorder()
		webUI.healthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "missing", incoming: "", keep: false},
		{name: "valid", incoming: "my-custom-trace-id-123", keep: true},
		{name: "boundary length", incoming: strings.Repeat("a", 128), keep: true},
		{name: "too long", incoming: strings.Repeat("a", 129), keep: false},
		{name: "invalid characters", incoming: "bad id<script>", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/board.png", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			assert.Equal(t, seen, got)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.Regexp(t, `^[0-9a-f-]{36}$`, got)
			}
		})
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(false, &buf)

	h := RequestIDMiddleware(NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
		http.NotFound(w, r)
	})))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, "request_id=req-42")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "status=404")
	assert.Contains(t, out, "path=/missing")
}

func TestNewServer(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Test, io.Discard)
	srv := webUI.NewServer(":8080")

	assert.Equal(t, ":8080", srv.Addr)
	assert.NotNil(t, srv.Handler)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadTimeout)
}

func TestMetricsHandler_NilMetrics(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	MetricsHandler(nil)(inner).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestMetricsHandler_RecordsRoutes(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)
	m := webUI.Application.Metrics
	handler := webUI.Handler()

	for _, path := range []string{"/healthz", "/healthz", "/nope"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /healthz", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestMetricsEndpoint(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)
	handler := webUI.Handler()

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/board.png", nil))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "tramboard_rows_rendered 1")
	assert.Contains(t, body, `tramboard_http_requests_total{method="GET",path="GET /board.png",status="200"} 1`)
}

func TestRateLimitMiddleware(t *testing.T) {
	var served int
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { served++ })
	handler := NewRateLimitMiddleware(time.Hour, 1).Handler(inner)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/board.png", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/board.png", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "3600", second.Header().Get("Retry-After"))
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, second.Body.String(), "rate_limited")
	assert.Equal(t, 1, served)
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := NewRateLimitMiddleware(0, 1).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}

func TestBoardRoute_Throttled(t *testing.T) {
	webUI := newTestWebUI(t, appconf.Development, io.Discard)
	webUI.boardLimit = NewRateLimitMiddleware(time.Hour, 1)
	handler := webUI.Handler()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/board.png", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
