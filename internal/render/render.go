// Package render lays ranked departures out as bordered tiles on a fixed
// canvas and rasterizes them to a black and white image.
//
// All sizes derive from the canvas height: the height is split evenly into
// four tile slots and everything inside a tile scales from a reference tile
// design, with floors on font and icon sizes.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/logging"
	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
)

// Palette is the two-colour palette of every rendered board.
var Palette = color.Palette{color.Black, color.White}

const (
	black = 0
	white = 1
)

// Options configures a Renderer.
type Options struct {
	Width, Height    int
	FontPath         string // empty uses the embedded Go fonts
	IconPath         string
	IconFallbackPath string
	Logger           *slog.Logger
}

// Renderer holds the loaded fonts and icon for one canvas size.
type Renderer struct {
	geometry       Geometry
	faces          faces
	smallCapHeight int
	icon           *image.Gray
	logger         *slog.Logger
}

// New loads the assets. It fails with ErrAssetMissing when neither icon
// path can be read.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas %dx%d", opts.Width, opts.Height)
	}
	logger := logging.Component(opts.Logger, "render")
	g := NewGeometry(opts.Width, opts.Height)

	ff, err := loadFaces(opts.FontPath, g.BigFontSize, g.SmallFontSize, logger)
	if err != nil {
		return nil, err
	}

	icon, used, err := loadIcon(opts.IconPath, opts.IconFallbackPath, g.IconSize)
	if err != nil {
		return nil, err
	}
	if used != opts.IconPath {
		logger.Debug("using fallback icon", slog.String("path", used))
	}

	return &Renderer{
		geometry:       g,
		faces:          ff,
		smallCapHeight: inkHeight(ff.small, "0"),
		icon:           icon,
		logger:         logger,
	}, nil
}

// Geometry returns the derived layout sizes.
func (r *Renderer) Geometry() Geometry {
	return r.geometry
}

// Render draws rows and messages and returns a 1-bit image.
func (r *Renderer) Render(rows []models.RankedRow, messages []string) *image.Paletted {
	return r.Rasterize(r.Layout(rows, messages))
}

// Rasterize draws a layout in greyscale, then thresholds it to Palette.
func (r *Renderer) Rasterize(l Layout) *image.Paletted {
	g := l.Geometry
	canvas := image.NewGray(image.Rect(0, 0, g.Width, g.Height))
	fillRect(canvas, canvas.Bounds(), color.White)

	for _, t := range l.Tiles {
		r.drawTile(canvas, t)
	}
	for _, line := range l.Lines {
		face := r.faces.small
		if line.Big {
			face = r.faces.big
		}
		drawString(canvas, face, line.At, line.Text, color.Black)
	}

	return threshold(canvas)
}

func (r *Renderer) drawTile(dst *image.Gray, t Tile) {
	g := r.geometry
	b := t.Bounds

	strokeRoundedRect(dst, b, g.Radius, 2, color.Black, color.White)

	sepX := t.LeftColumn.Max.X - 1
	fillRect(dst, image.Rect(sepX-1, b.Min.Y, sepX+1, b.Max.Y), color.Black)

	ink := color.Color(color.Black)
	if t.Highlight {
		fillRoundedRect(dst, t.LeftColumn, g.Radius, leftCorners, color.Black)
		ink = color.White
	}
	drawString(dst, r.faces.big, t.LeaveAt, t.LeaveText, ink)
	drawString(dst, r.faces.small, t.UnitAt, unitText, ink)

	drawString(dst, r.faces.small, t.LineAt, t.Row.Line, color.Black)
	draw.Draw(dst, r.icon.Bounds().Add(t.IconAt), r.icon, image.Point{}, draw.Src)
	drawString(dst, r.faces.small, t.ArrowAt, arrowText, color.Black)
	drawString(dst, r.faces.small, t.DestinationAt, t.Destination, color.Black)

	drawString(dst, r.faces.small, t.LabelAt, t.Row.Label, color.Black)
	drawString(dst, r.faces.small, t.DepartureAt, t.DepartureText, color.Black)
}

func drawString(dst draw.Image, face font.Face, at image.Point, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(s)
}

func threshold(src *image.Gray) *image.Paletted {
	b := src.Bounds()
	dst := image.NewPaletted(b, Palette)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			idx := uint8(white)
			if src.GrayAt(x, y).Y < 128 {
				idx = black
			}
			dst.SetColorIndex(x, y, idx)
		}
	}
	return dst
}
