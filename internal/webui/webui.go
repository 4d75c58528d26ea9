// Package webui serves a preview of the board over HTTP so the layout can be
// checked from a browser without a panel attached.
package webui

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/app"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
)

// WebUI serves the preview endpoints. Board passes are serialized because
// the pipeline is single-threaded.
type WebUI struct {
	Application *app.Application
	logger      *slog.Logger
	mu          sync.Mutex
	boardLimit  *RateLimitMiddleware
}

// New creates a WebUI over application with board renders throttled to
// DefaultBoardInterval.
func New(application *app.Application) *WebUI {
	return NewWithBoardInterval(application, DefaultBoardInterval)
}

// NewWithBoardInterval is New with a custom render spacing; zero disables
// throttling.
func NewWithBoardInterval(application *app.Application, every time.Duration) *WebUI {
	return &WebUI{
		Application: application,
		logger:      logging.Component(application.Logger, "webui"),
		boardLimit:  NewRateLimitMiddleware(every, 1),
	}
}

// Handler returns the routed handler wrapped in request id, request logging,
// gzip and metrics middleware.
func (webUI *WebUI) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /board.png", webUI.boardLimit.Handler(http.HandlerFunc(webUI.boardHandler)))
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
	mux.HandleFunc("GET /healthz", webUI.healthHandler)
	mux.Handle("GET /metrics", webUI.metricsEndpoint())

	var h http.Handler = mux
	h = MetricsHandler(webUI.Application.Metrics)(h)
	h = gzhttp.GzipHandler(h)
	h = NewRequestLoggingMiddleware(webUI.logger)(h)
	h = RequestIDMiddleware(h)
	return h
}

// NewServer builds an http.Server for addr with the preview handler.
func (webUI *WebUI) NewServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      webUI.Handler(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
