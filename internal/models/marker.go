package models

// Point is a 2D coordinate. Depending on context it is a screen pixel position
// or a percentage of the drawing's natural size.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Marker binds a component to a position on the technical drawing.
// X and Y are percentages of the drawing (0-100).
type Marker struct {
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	ManualRPM *float64 `json:"manualRPM,omitempty"`
}

// Position returns the marker coordinates as a Point.
func (m Marker) Position() Point {
	return Point{X: m.X, Y: m.Y}
}

// ViewState is the pan/zoom transform of the drawing surface.
type ViewState struct {
	Zoom   float64 `json:"zoom"`
	Offset Point   `json:"offset"`
}

// DefaultViewState returns the identity transform.
func DefaultViewState() ViewState {
	return ViewState{Zoom: 1}
}
