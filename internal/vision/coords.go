// Package vision implements the machine-vision overlay: markers placed on a technical
// drawing, the pan/zoom viewport, and the pointer gestures that drive them.
package vision

import (
	"errors"
	"math"

	"github.com/rpm-monitor/backend/internal/models"
)

// ErrEmptyRect is returned when a surface rectangle has no area.
var ErrEmptyRect = errors.New("surface rectangle has no area")

// Size is a width/height pair in pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether s has no usable area.
func (s Size) Empty() bool {
	return !(s.Width > 0 && s.Height > 0) || math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0)
}

// Rect is the on-screen bounding box of the transformed drawing.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether r can be used for coordinate mapping.
func (r Rect) Valid() bool {
	return !Size{Width: r.Width, Height: r.Height}.Empty() &&
		!math.IsNaN(r.Left) && !math.IsNaN(r.Top)
}

// Contains reports whether the screen point p lies inside r (edges included).
func (r Rect) Contains(p models.Point) bool {
	return p.X >= r.Left && p.X <= r.Left+r.Width &&
		p.Y >= r.Top && p.Y <= r.Top+r.Height
}

// ToPercent maps a screen point to percentage-of-drawing coordinates.
// r must be the live, already transformed rectangle of the drawing.
func ToPercent(client models.Point, r Rect) (models.Point, error) {
	if !r.Valid() {
		return models.Point{}, ErrEmptyRect
	}
	return models.Point{
		X: (client.X - r.Left) / r.Width * 100,
		Y: (client.Y - r.Top) / r.Height * 100,
	}, nil
}

// FromPercent maps percentage coordinates back to a screen point within r.
func FromPercent(pct models.Point, r Rect) models.Point {
	return models.Point{
		X: r.Left + pct.X/100*r.Width,
		Y: r.Top + pct.Y/100*r.Height,
	}
}

// Clamp limits both axes of a percentage point to [0, 100].
func Clamp(p models.Point) models.Point {
	return models.Point{X: clampPct(p.X), Y: clampPct(p.Y)}
}

func clampPct(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
