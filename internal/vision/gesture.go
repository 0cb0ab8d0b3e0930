package vision

// GestureKind is the state of the pointer gesture machine.
type GestureKind int

const (
	GestureIdle GestureKind = iota
	GesturePanning
	GestureDragging
)

func (k GestureKind) String() string {
	switch k {
	case GesturePanning:
		return "panning"
	case GestureDragging:
		return "dragging"
	default:
		return "idle"
	}
}

// Gesture is the active pointer session. MarkerID is set while dragging.
type Gesture struct {
	Kind     GestureKind `json:"kind"`
	MarkerID string      `json:"markerId,omitempty"`
	moved    bool
}

// Active reports whether a pointer session is in progress.
func (g Gesture) Active() bool {
	return g.Kind != GestureIdle
}
