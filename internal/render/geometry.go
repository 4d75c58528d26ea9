package render

import "math"

// Reference tile design. Every size on a tile scales with the ratio of the
// actual tile height to referenceTileHeight.
const (
	referenceTileHeight = 86
	referenceRadius     = 22
	referenceLeftWidth  = 165
	referenceIconGap    = 8
	referenceBigFont    = 62
	referenceSmallFont  = 22
	referenceIcon       = 30
	referencePadding    = 15
	referenceBottomGap  = 13

	minBigFont   = 12
	minSmallFont = 8
	minIcon      = 16

	// TileSlots is how many tiles the canvas is divided into, whether or
	// not they are all filled.
	TileSlots = 4

	marginTop = 10
	tileGap   = 10
)

// Geometry holds every size derived from the canvas.
type Geometry struct {
	Width, Height int

	MarginTop int
	Gap       int

	TileX      int
	TileWidth  int
	TileHeight int
	Scale      float64

	Radius        int
	LeftWidth     int
	IconGap       int
	Padding       int
	BottomPadding int

	BigFontSize   int
	SmallFontSize int
	IconSize      int
}

// NewGeometry lays out TileSlots tiles in a width x height canvas. The tile
// width is 7/8 of the canvas, centred.
func NewGeometry(width, height int) Geometry {
	usable := height - 2*marginTop - (TileSlots-1)*tileGap
	tileH := usable / TileSlots
	if tileH < 1 {
		tileH = 1
	}
	scale := float64(tileH) / referenceTileHeight
	tileW := width * 7 / 8

	scaled := func(v float64) int { return int(math.Floor(v * scale)) }

	return Geometry{
		Width:         width,
		Height:        height,
		MarginTop:     marginTop,
		Gap:           tileGap,
		TileX:         (width - tileW) / 2,
		TileWidth:     tileW,
		TileHeight:    tileH,
		Scale:         scale,
		Radius:        scaled(referenceRadius),
		LeftWidth:     scaled(referenceLeftWidth),
		IconGap:       scaled(referenceIconGap),
		Padding:       scaled(referencePadding),
		BottomPadding: scaled(referenceBottomGap),
		BigFontSize:   max(minBigFont, scaled(referenceBigFont)),
		SmallFontSize: max(minSmallFont, scaled(referenceSmallFont)),
		IconSize:      max(minIcon, scaled(referenceIcon)),
	}
}

// TileTop returns the top edge of the tile in slot i.
func (g Geometry) TileTop(i int) int {
	return g.MarginTop + i*(g.TileHeight+g.Gap)
}
