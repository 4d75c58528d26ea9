package webui

import (
	"encoding/json"
	"net/http"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/store"
)

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// healthHandler checks that the pipeline is wired and the cache reachable.
func (webUI *WebUI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	a := webUI.Application
	if a == nil || a.Board == nil || a.Renderer == nil || a.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "board pipeline not initialized",
		})
		return
	}

	if sq, ok := a.Store.(*store.SQLiteStore); ok {
		if err := sq.DB().PingContext(r.Context()); err != nil {
			logging.LogError(webUI.logger, "cache DB ping failed", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{
				Status: "unavailable",
				Detail: "cache database connection failed",
			})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}
