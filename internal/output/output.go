// Package output hands a finished board to its destination: a PNG file in
// debug mode, otherwise a display driver.
package output

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/appconf"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
)

var encoder = png.Encoder{CompressionLevel: png.BestCompression}

// EncodePNG writes img as a PNG. Two-colour paletted images come out 1-bit.
func EncodePNG(w io.Writer, img image.Image) error {
	return encoder.Encode(w, img)
}

// Dispatcher routes frames by mode.
type Dispatcher struct {
	mode   string
	path   string
	drawer display.Drawer
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. drawer may be nil when no panel is
// attached; frames for the display are then dropped with a log line.
func NewDispatcher(mode, path string, drawer display.Drawer, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		mode:   mode,
		path:   path,
		drawer: drawer,
		logger: logging.Component(logger, "output"),
	}
}

// Dispatch delivers img.
func (d *Dispatcher) Dispatch(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if appconf.IsDebugMode(d.mode) {
		return d.writeFile(img)
	}
	return d.toDisplay(img)
}

// writeFile replaces the output file atomically so a reader never sees a
// partial image.
func (d *Dispatcher) writeFile(img image.Image) (err error) {
	dir := filepath.Dir(d.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(d.path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", d.path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = EncodePNG(tmp, img); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding board: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), d.path); err != nil {
		return fmt.Errorf("replacing %s: %w", d.path, err)
	}

	logging.LogOperation(d.logger, "board_written", slog.String("path", d.path))
	return nil
}

func (d *Dispatcher) toDisplay(img image.Image) error {
	if d.drawer == nil {
		d.logger.Info("no display driver attached, frame dropped", slog.String("mode", d.mode))
		return nil
	}

	frame := image1bit.NewVerticalLSB(d.drawer.Bounds())
	draw.Draw(frame, frame.Bounds(), img, img.Bounds().Min, draw.Src)
	if err := d.drawer.Draw(d.drawer.Bounds(), frame, image.Point{}); err != nil {
		return fmt.Errorf("drawing to %s: %w", d.drawer, err)
	}

	logging.LogOperation(d.logger, "board_displayed", slog.String("display", d.drawer.String()))
	return nil
}
