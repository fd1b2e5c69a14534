package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	headerHeight = 11
	minRowHeight = 10
	staleMarker  = 2
)

// MatrixRenderer draws a header with the direction label followed by one row
// per arrival: a route badge on the left and the countdown on the right.
type MatrixRenderer struct {
	layout Layout
	face   font.Face
	now    func() time.Time
}

func NewMatrixRenderer(layout Layout) (*MatrixRenderer, error) {
	if layout.Width < 16 || layout.Height < headerHeight+minRowHeight {
		return nil, fmt.Errorf("display %dx%d is too small", layout.Width, layout.Height)
	}
	return &MatrixRenderer{layout: layout, face: basicfont.Face7x13, now: time.Now}, nil
}

func (renderer *MatrixRenderer) Layout() Layout {
	return renderer.layout
}

// MaxRows is how many arrivals fit under the header.
func (renderer *MatrixRenderer) MaxRows() int {
	return (renderer.layout.Height - headerHeight) / minRowHeight
}

func (renderer *MatrixRenderer) Render(view View) (Frame, error) {
	palette := renderer.layout.Palette
	img := image.NewRGBA(image.Rect(0, 0, renderer.layout.Width, renderer.layout.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(palette.Background), image.Point{}, draw.Src)

	label := view.Label
	if label == "" {
		label = renderer.layout.Label(view.Direction)
	}
	header := image.Rect(0, 0, renderer.layout.Width, headerHeight)
	renderer.drawCentered(img, header, label, palette.Header)

	rows := renderer.MaxRows()
	rowHeight := (renderer.layout.Height - headerHeight) / rows
	body := image.Rect(0, headerHeight, renderer.layout.Width, renderer.layout.Height)

	switch {
	case !view.HasData:
		renderer.drawCentered(img, body, "NO DATA", palette.Muted)
	case len(view.Minutes) == 0:
		renderer.drawCentered(img, body, "--", palette.Muted)
	default:
		for i, minutes := range view.Minutes {
			if i >= rows {
				break
			}
			top := headerHeight + i*rowHeight
			row := image.Rect(0, top, renderer.layout.Width, top+rowHeight)
			renderer.drawRow(img, row, view.Route, minutes)
		}
	}

	if view.Stale {
		marker := image.Rect(renderer.layout.Width-staleMarker, 0, renderer.layout.Width, staleMarker)
		draw.Draw(img, marker, image.NewUniform(palette.Stale), image.Point{}, draw.Src)
	}

	return Frame{Direction: view.Direction, Image: img, RenderedAt: renderer.now()}, nil
}

func (renderer *MatrixRenderer) drawRow(img *image.RGBA, row image.Rectangle, route string, minutes int) {
	palette := renderer.layout.Palette
	radius := min(5, (row.Dy()-1)/2)
	center := image.Pt(radius+1, row.Min.Y+row.Dy()/2)
	fillCircle(img, center, radius, palette.Badge)

	if route != "" {
		badge := image.Rect(center.X-radius, center.Y-radius, center.X+radius+1, center.Y+radius+1)
		renderer.drawCentered(img, badge, route[:1], palette.BadgeText)
	}

	text := FormatCountdown(minutes)
	width := font.MeasureString(renderer.face, text).Ceil()
	renderer.drawText(img, row, row.Max.X-width, text, palette.Countdown)
}

func (renderer *MatrixRenderer) drawCentered(img *image.RGBA, area image.Rectangle, text string, col color.RGBA) {
	width := font.MeasureString(renderer.face, text).Ceil()
	x := area.Min.X + (area.Dx()-width)/2
	if x < area.Min.X {
		x = area.Min.X
	}
	renderer.drawText(img, area, x, text, col)
}

// drawText draws text clipped to area, vertically centered on the font's cap height.
func (renderer *MatrixRenderer) drawText(img *image.RGBA, area image.Rectangle, x int, text string, col color.RGBA) {
	clip, ok := img.SubImage(area).(*image.RGBA)
	if !ok || clip.Bounds().Empty() {
		return
	}

	metrics := renderer.face.Metrics()
	capHeight := metrics.CapHeight.Ceil()
	if capHeight <= 0 {
		capHeight = metrics.Ascent.Ceil() - 2
	}
	baseline := area.Min.Y + (area.Dy()+capHeight)/2

	drawer := &font.Drawer{
		Dst:  clip,
		Src:  image.NewUniform(col),
		Face: renderer.face,
		Dot:  fixed.P(x, baseline),
	}
	drawer.DrawString(text)
}

func fillCircle(img *image.RGBA, center image.Point, radius int, col color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius+radius {
				img.SetRGBA(center.X+dx, center.Y+dy, col)
			}
		}
	}
}
