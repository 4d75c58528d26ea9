package webui

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

type debugData struct {
	Title string
	Pre   string
}

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

func writeDebugData(w http.ResponseWriter, r *http.Request, title string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := debugTemplate.Execute(w, debugData{Title: title, Pre: dumper.Sdump(data)})
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugIndexHandler dumps either the ranked content of a fresh pass or the
// effective configuration. It does not exist in production.
func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Application.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	switch r.URL.Query().Get("dataType") {
	case "", "board":
		snap, _, err := webUI.compose(r)
		if err != nil {
			logging.LogError(logging.FromContext(r.Context()), "failed to compose board", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeDebugData(w, r, "Board - Ranked Rows", snap)
	case "stops":
		writeDebugData(w, r, "Configuration - Stops", webUI.Application.Config.Stops)
	case "geometry":
		writeDebugData(w, r, "Layout - Geometry", webUI.Application.Renderer.Geometry())
	default:
		writeDebugData(w, r, "Choose a data type", map[string]string{
			"error": "Please use one of the following: board, stops, geometry.",
		})
	}
}
