package webui

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/app"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/output"
)

// compose runs one board pass under the WebUI lock.
func (webUI *WebUI) compose(r *http.Request) (app.Snapshot, []byte, error) {
	webUI.mu.Lock()
	defer webUI.mu.Unlock()

	snap, img := webUI.Application.Compose(r.Context())
	var buf bytes.Buffer
	if err := output.EncodePNG(&buf, img); err != nil {
		return snap, nil, err
	}
	return snap, buf.Bytes(), nil
}

func (webUI *WebUI) boardHandler(w http.ResponseWriter, r *http.Request) {
	snap, data, err := webUI.compose(r)
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode board", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Board-Run-ID", snap.RunID)
	w.Header().Set("X-Board-Rows", strconv.Itoa(len(snap.Rows)))
	_, _ = w.Write(data)
}
