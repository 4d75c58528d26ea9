package render

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// faces are the two sizes the board uses. Sizes are pixels (72 DPI).
type faces struct {
	big   font.Face
	small font.Face
}

// loadFaces opens fontPath for both sizes, or the embedded Go fonts when
// fontPath is empty or unreadable.
func loadFaces(fontPath string, bigSize, smallSize int, logger *slog.Logger) (faces, error) {
	bigFont, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("parsing embedded bold font: %w", err)
	}
	smallFont, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return faces{}, fmt.Errorf("parsing embedded regular font: %w", err)
	}

	if fontPath != "" {
		custom, err := parseFontFile(fontPath)
		if err != nil {
			logger.Warn("font unavailable, using embedded font",
				slog.String("path", fontPath), slog.String("error", err.Error()))
		} else {
			bigFont, smallFont = custom, custom
		}
	}

	big, err := newFace(bigFont, bigSize)
	if err != nil {
		return faces{}, err
	}
	small, err := newFace(smallFont, smallSize)
	if err != nil {
		return faces{}, err
	}
	return faces{big: big, small: small}, nil
}

func parseFontFile(path string) (*opentype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

func newFace(f *opentype.Font, size int) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("creating %dpx face: %w", size, err)
	}
	return face, nil
}

// textWidth is the advance width of s in whole pixels.
func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// inkHeight is the height of the glyph outlines of s.
func inkHeight(face font.Face, s string) int {
	bounds, _ := font.BoundString(face, s)
	return (bounds.Max.Y - bounds.Min.Y).Ceil()
}

func ascent(face font.Face) int {
	return face.Metrics().Ascent.Ceil()
}
