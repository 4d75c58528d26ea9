package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// kappa places cubic control points so a Bézier approximates a quarter circle.
const kappa = 0.5522847

type corners uint8

const (
	topLeft corners = 1 << iota
	topRight
	bottomRight
	bottomLeft

	allCorners  = topLeft | topRight | bottomRight | bottomLeft
	leftCorners = topLeft | bottomLeft
)

// fillRoundedRect fills r, rounding the selected corners with radius.
func fillRoundedRect(dst draw.Image, r image.Rectangle, radius int, round corners, c color.Color) {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	radius = max(0, min(radius, w/2, h/2))

	rad := func(c corners) float32 {
		if round&c != 0 {
			return float32(radius)
		}
		return 0
	}
	tl, tr, br, bl := rad(topLeft), rad(topRight), rad(bottomRight), rad(bottomLeft)
	fw, fh := float32(w), float32(h)
	k := float32(kappa)

	z := vector.NewRasterizer(w, h)
	z.MoveTo(tl, 0)
	z.LineTo(fw-tr, 0)
	if tr > 0 {
		z.CubeTo(fw-tr+k*tr, 0, fw, tr-k*tr, fw, tr)
	}
	z.LineTo(fw, fh-br)
	if br > 0 {
		z.CubeTo(fw, fh-br+k*br, fw-br+k*br, fh, fw-br, fh)
	}
	z.LineTo(bl, fh)
	if bl > 0 {
		z.CubeTo(bl-k*bl, fh, 0, fh-bl+k*bl, 0, fh-bl)
	}
	z.LineTo(0, tl)
	if tl > 0 {
		z.CubeTo(0, tl-k*tl, tl-k*tl, 0, tl, 0)
	}
	z.ClosePath()

	z.Draw(dst, r, image.NewUniform(c), image.Point{})
}

// strokeRoundedRect draws a border of the given width inside r.
func strokeRoundedRect(dst draw.Image, r image.Rectangle, radius, width int, fg, bg color.Color) {
	fillRoundedRect(dst, r, radius, allCorners, fg)
	fillRoundedRect(dst, r.Inset(width), radius-width, allCorners, bg)
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}
