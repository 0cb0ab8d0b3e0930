package vision

import (
	"math"

	"github.com/rpm-monitor/backend/internal/models"
)

const (
	MinZoom = 0.05
	MaxZoom = 20.0

	// ButtonZoomFactor is applied per zoom-in/zoom-out activation.
	ButtonZoomFactor = 1.3
	// WheelZoomRate converts wheel delta into a linear zoom step.
	WheelZoomRate = -0.001
)

// ClampZoom limits z to [MinZoom, MaxZoom]. NaN resets to 1.
func ClampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}

// Viewport holds the pan/zoom transform applied to the drawing layer.
// The layer is translated by Offset and then scaled by Zoom about its top-left
// corner, so the drawing and all markers move as one rigid composition.
type Viewport struct {
	state   models.ViewState
	anchor  models.Point
	panning bool
}

// NewViewport creates a viewport from a persisted state, clamping the zoom.
// A missing (non-positive) zoom starts at 1.
func NewViewport(vs models.ViewState) *Viewport {
	v := &Viewport{state: vs}
	if !(vs.Zoom > 0) {
		v.state.Zoom = 1
	}
	v.state.Zoom = ClampZoom(v.state.Zoom)
	if math.IsNaN(v.state.Offset.X) || math.IsNaN(v.state.Offset.Y) {
		v.state.Offset = models.Point{}
	}
	return v
}

// State returns the current transform.
func (v *Viewport) State() models.ViewState {
	return v.state
}

// Zoom returns the current scale.
func (v *Viewport) Zoom() float64 {
	return v.state.Zoom
}

// BeginPan captures the drag anchor for a pan gesture starting at p.
func (v *Viewport) BeginPan(p models.Point) {
	v.anchor = p.Sub(v.state.Offset)
	v.panning = true
}

// PanTo moves the layer so that the anchor follows p. Returns false when no pan is active.
func (v *Viewport) PanTo(p models.Point) bool {
	if !v.panning {
		return false
	}
	v.state.Offset = p.Sub(v.anchor)
	return true
}

// EndPan finishes the pan gesture.
func (v *Viewport) EndPan() {
	v.panning = false
}

// Panning reports whether a pan gesture is active.
func (v *Viewport) Panning() bool {
	return v.panning
}

// Wheel applies a scroll gesture.
func (v *Viewport) Wheel(deltaY float64) {
	if math.IsNaN(deltaY) || math.IsInf(deltaY, 0) {
		return
	}
	v.state.Zoom = ClampZoom(v.state.Zoom + deltaY*WheelZoomRate)
}

// ZoomIn multiplies the zoom by ButtonZoomFactor.
func (v *Viewport) ZoomIn() {
	v.state.Zoom = ClampZoom(v.state.Zoom * ButtonZoomFactor)
}

// ZoomOut divides the zoom by ButtonZoomFactor.
func (v *Viewport) ZoomOut() {
	v.state.Zoom = ClampZoom(v.state.Zoom / ButtonZoomFactor)
}

// Reset restores the identity transform and cancels any pan.
func (v *Viewport) Reset() {
	v.state = models.DefaultViewState()
	v.panning = false
}

// SurfaceRect returns the on-screen rectangle of a drawing of the given natural
// size whose untransformed top-left corner sits at origin.
func (v *Viewport) SurfaceRect(origin models.Point, natural Size) Rect {
	return Rect{
		Left:   origin.X + v.state.Offset.X,
		Top:    origin.Y + v.state.Offset.Y,
		Width:  natural.Width * v.state.Zoom,
		Height: natural.Height * v.state.Zoom,
	}
}
