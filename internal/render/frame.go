// Package render draws arrival snapshots into pixel frames and hands them to
// sinks: PNG files for offline simulation, or an in-memory preview served
// over HTTP.
package render

import (
	"image"
	"image/color"
	"strconv"
	"time"

	"tarediiran-industries.com/transit-board/internal/arrivals"
)

const (
	DefaultWidth  = 64
	DefaultHeight = 32
)

// View is everything the renderer needs for one frame.
type View struct {
	Direction arrivals.Direction
	Label     string
	Route     string
	Minutes   []int
	// Stale is set when the cached snapshot is older than the configured threshold.
	Stale bool
	// HasData is false until the first successful fetch.
	HasData bool
}

type Frame struct {
	Direction  arrivals.Direction
	Image      *image.RGBA
	RenderedAt time.Time
}

func (frame Frame) Bounds() image.Rectangle {
	if frame.Image == nil {
		return image.Rectangle{}
	}
	return frame.Image.Bounds()
}

type Renderer interface {
	Render(view View) (Frame, error)
}

// Palette maps each visual role to a color.
type Palette struct {
	Background color.RGBA
	Header     color.RGBA
	Badge      color.RGBA
	BadgeText  color.RGBA
	Countdown  color.RGBA
	Stale      color.RGBA
	Muted      color.RGBA
}

func DefaultPalette() Palette {
	return Palette{
		Background: color.RGBA{0, 0, 0, 255},
		Header:     color.RGBA{255, 255, 255, 255},
		Badge:      color.RGBA{255, 0, 0, 255},
		BadgeText:  color.RGBA{255, 255, 0, 255},
		Countdown:  color.RGBA{0, 255, 255, 255},
		Stale:      color.RGBA{255, 0, 255, 255},
		Muted:      color.RGBA{128, 128, 128, 255},
	}
}

type Layout struct {
	Width         int
	Height        int
	UptownLabel   string
	DowntownLabel string
	Palette       Palette
}

func DefaultLayout() Layout {
	return Layout{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		UptownLabel:   "UPTOWN",
		DowntownLabel: "DOWNTOWN",
		Palette:       DefaultPalette(),
	}
}

func (layout Layout) Label(direction arrivals.Direction) string {
	if direction == arrivals.Downtown {
		return layout.DowntownLabel
	}
	return layout.UptownLabel
}

// FormatCountdown is the text shown for one arrival.
func FormatCountdown(minutes int) string {
	if minutes <= 0 {
		return "NOW"
	}
	return strconv.Itoa(minutes) + "m"
}
