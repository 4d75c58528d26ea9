package render

import (
	"image"
	"strconv"

	"github.com/Tombiczek/RaspberryPi-Tram-Watcher/internal/models"
)

const (
	// NoDataText is drawn when no departure is eligible.
	NoDataText = "no data"
	// ErrorsHeader introduces the error lines below the tiles.
	ErrorsHeader = "errors:"

	unitText  = "min"
	arrowText = "→"
	ellipsis  = "…"
	unitGap   = 4
)

// Tile is one departure placed on the canvas.
type Tile struct {
	Bounds     image.Rectangle
	LeftColumn image.Rectangle
	Row        models.RankedRow
	// Highlight inverts the left column when the rider should already be walking.
	Highlight bool

	LeaveText     string
	LeaveAt       image.Point // baseline origin of LeaveText
	UnitAt        image.Point // baseline origin of "min"
	LineAt        image.Point
	IconAt        image.Point // top-left of the icon
	ArrowAt       image.Point
	Destination   string // possibly truncated
	DestinationAt image.Point
	LabelAt       image.Point
	DepartureText string
	DepartureAt   image.Point
}

// TextLine is free text outside the tiles; At is the baseline origin.
type TextLine struct {
	Text string
	At   image.Point
	Big  bool
}

// Layout is everything the rasterizer draws, with positions resolved.
type Layout struct {
	Geometry Geometry
	Tiles    []Tile
	Lines    []TextLine
}

// Layout places at most TileSlots rows. With no rows it lists NoDataText
// and the messages instead; otherwise messages follow the last tile.
func (r *Renderer) Layout(rows []models.RankedRow, messages []string) Layout {
	g := r.geometry
	out := Layout{Geometry: g}

	if len(rows) == 0 {
		top := g.MarginTop
		out.Lines = append(out.Lines, TextLine{
			Text: NoDataText,
			At:   image.Pt(20, top+ascent(r.faces.big)),
			Big:  true,
		})
		for _, msg := range messages {
			top += g.BigFontSize + 10
			out.Lines = append(out.Lines, TextLine{
				Text: msg,
				At:   image.Pt(20, top+ascent(r.faces.small)),
			})
		}
		return out
	}

	if len(rows) > TileSlots {
		rows = rows[:TileSlots]
	}
	for i, row := range rows {
		out.Tiles = append(out.Tiles, r.layoutTile(i, row))
	}

	if len(messages) > 0 {
		last := out.Tiles[len(out.Tiles)-1].Bounds
		top := last.Max.Y + g.Gap + 10
		out.Lines = append(out.Lines, TextLine{
			Text: ErrorsHeader,
			At:   image.Pt(g.TileX, top+ascent(r.faces.small)),
		})
		for _, msg := range messages {
			top += g.SmallFontSize + 4
			out.Lines = append(out.Lines, TextLine{
				Text: msg,
				At:   image.Pt(g.TileX, top+ascent(r.faces.small)),
			})
		}
	}
	return out
}

func (r *Renderer) layoutTile(slot int, row models.RankedRow) Tile {
	g := r.geometry
	big, small := r.faces.big, r.faces.small

	x0, y0 := g.TileX, g.TileTop(slot)
	x1, y1 := x0+g.TileWidth, y0+g.TileHeight

	t := Tile{
		Bounds:        image.Rect(x0, y0, x1+1, y1+1),
		LeftColumn:    image.Rect(x0, y0, x0+g.LeftWidth+1, y1+1),
		Row:           row,
		Highlight:     row.MustLeave(),
		LeaveText:     strconv.Itoa(row.MinutesToLeave),
		DepartureText: strconv.Itoa(row.MinutesToDeparture) + " " + unitText,
	}

	// Left column: numeral and unit share a baseline that centres the numeral.
	numW := textWidth(big, t.LeaveText)
	unitW := textWidth(small, unitText)
	numX := x0 + (g.LeftWidth-(numW+unitGap+unitW))/2
	baseline := y0 + (g.TileHeight+inkHeight(big, t.LeaveText))/2
	t.LeaveAt = image.Pt(numX, baseline)
	t.UnitAt = image.Pt(numX+numW+unitGap, baseline)

	// Right region: line, icon, arrow and destination centred on the icon,
	// lifted a little to leave room for the bottom strip.
	curX := x0 + g.LeftWidth + g.Padding
	iconTop := y0 + (g.TileHeight-g.IconSize)/2 - 5
	rowBaseline := iconTop + (g.IconSize+r.smallCapHeight)/2

	t.LineAt = image.Pt(curX, rowBaseline)
	curX += textWidth(small, row.Line) + g.IconGap
	t.IconAt = image.Pt(curX, iconTop)
	curX += g.IconSize + g.IconGap
	t.ArrowAt = image.Pt(curX, rowBaseline)
	curX += textWidth(small, arrowText) + g.IconGap

	t.Destination = r.fitDestination(row.Destination, x1-g.Padding-curX)
	t.DestinationAt = image.Pt(curX, rowBaseline)

	// Bottom strip: label left, minutes to departure right.
	bottom := y1 - g.BottomPadding
	t.LabelAt = image.Pt(x0+g.LeftWidth+g.Padding, bottom)
	t.DepartureAt = image.Pt(x1-textWidth(small, t.DepartureText)-g.Padding, bottom)

	return t
}

// fitDestination keeps dest when it fits maxWidth. Otherwise it starts from
// as many characters as maxWidth holds at half the font size each and drops
// characters until the prefix plus an ellipsis fits.
func (r *Renderer) fitDestination(dest string, maxWidth int) string {
	face := r.faces.small
	if textWidth(face, dest) <= maxWidth {
		return dest
	}
	avgGlyph := max(1, r.geometry.SmallFontSize/2)
	runes := []rune(dest)
	keep := min(len(runes), max(0, maxWidth/avgGlyph))
	for keep > 0 && textWidth(face, string(runes[:keep])+ellipsis) > maxWidth {
		keep--
	}
	return string(runes[:keep]) + ellipsis
}
