package vision

import (
	"fmt"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
)

// DefaultHitRadius is the on-screen radius of a marker, in pixels.
const DefaultHitRadius = 14.0

// PointerEvent is a pointer position reported by the client.
//
// Origin is the untransformed top-left corner of the drawing layer in client
// coordinates. When the client measured the transformed element itself it may send
// Rect, which then takes precedence over the rectangle derived from the viewport.
type PointerEvent struct {
	Client models.Point `json:"client"`
	Origin models.Point `json:"origin"`
	Rect   *Rect        `json:"rect,omitempty"`
	Shift  bool         `json:"shift"`
}

// Scene composes the drawing surface, viewport, markers and placement protocol.
// It is not safe for concurrent use; the owning session serializes access.
type Scene struct {
	Catalog   *catalog.Catalog
	Markers   *MarkerStore
	Viewport  *Viewport
	Placement *Placement
	Surface   *Surface

	HitRadius float64

	gesture       Gesture
	suppressClick bool
}

// NewScene creates an empty scene.
func NewScene(cat *catalog.Catalog) *Scene {
	return &Scene{
		Catalog:   cat,
		Markers:   NewMarkerStore(cat),
		Viewport:  NewViewport(models.DefaultViewState()),
		Placement: &Placement{},
		Surface:   &Surface{},
		HitRadius: DefaultHitRadius,
	}
}

// Gesture returns the active pointer session.
func (s *Scene) Gesture() Gesture {
	return s.gesture
}

// Rect returns the live on-screen rectangle of the drawing for an event.
func (s *Scene) Rect(ev PointerEvent) (Rect, error) {
	if ev.Rect != nil {
		if !ev.Rect.Valid() {
			return Rect{}, ErrEmptyRect
		}
		return *ev.Rect, nil
	}
	if s.Surface.Natural().Empty() {
		return Rect{}, ErrEmptyRect
	}
	return s.Viewport.SurfaceRect(ev.Origin, s.Surface.Natural()), nil
}

// PointerDown starts a pointer session. Markers are hit-tested first: a hit starts
// a marker drag (and turns edit mode on). Otherwise the background starts a pan,
// except in edit mode where a plain press is left for Click and only a
// shift-press pans.
func (s *Scene) PointerDown(ev PointerEvent) Gesture {
	s.suppressClick = false
	s.gesture = Gesture{}

	if r, err := s.Rect(ev); err == nil {
		if id, ok := s.Markers.HitTest(ev.Client, r, s.HitRadius); ok && !ev.Shift {
			if !s.Placement.Editing() {
				s.Placement.SetEditing(true)
			}
			s.gesture = Gesture{Kind: GestureDragging, MarkerID: id}
			return s.gesture
		}
	}

	if s.Placement.Editing() && !ev.Shift {
		return s.gesture
	}

	s.Viewport.BeginPan(ev.Client)
	s.gesture = Gesture{Kind: GesturePanning}
	return s.gesture
}

// PointerMove advances the active session. It reports whether anything changed.
func (s *Scene) PointerMove(ev PointerEvent) (bool, error) {
	switch s.gesture.Kind {
	case GestureDragging:
		r, err := s.Rect(ev)
		if err != nil {
			return false, err
		}
		pct, err := ToPercent(ev.Client, r)
		if err != nil {
			return false, err
		}
		if err := s.Markers.Move(s.gesture.MarkerID, pct); err != nil {
			return false, err
		}
		s.gesture.moved = true
		return true, nil
	case GesturePanning:
		s.gesture.moved = s.Viewport.PanTo(ev.Client) || s.gesture.moved
		return true, nil
	}
	return false, nil
}

// PointerUp ends the session and commits the last position.
func (s *Scene) PointerUp() Gesture {
	ended := s.gesture
	s.suppressClick = ended.Kind == GestureDragging || (ended.Kind == GesturePanning && ended.moved)
	s.Viewport.EndPan()
	s.gesture = Gesture{}
	return ended
}

// Click handles a click on the drawing. In edit mode it opens a placing candidate
// at the clicked position. Clicks that end a drag or a moved pan are ignored, as
// are clicks while the drawing is loading.
func (s *Scene) Click(ev PointerEvent) (models.Point, error) {
	suppressed := s.suppressClick
	s.suppressClick = false

	if !s.Placement.Editing() {
		return models.Point{}, ErrNotEditing
	}
	if suppressed || s.gesture.Active() {
		return models.Point{}, fmt.Errorf("click ends a gesture: %w", ErrNoCandidate)
	}
	if s.Surface.Loading() {
		return models.Point{}, ErrSurfaceBusy
	}
	if s.Surface.Ref() == "" {
		return models.Point{}, ErrNoDrawing
	}

	r, err := s.Rect(ev)
	if err != nil {
		return models.Point{}, err
	}
	if !r.Contains(ev.Client) {
		return models.Point{}, ErrOutsideImage
	}
	pct, err := ToPercent(ev.Client, r)
	if err != nil {
		return models.Point{}, err
	}
	pct = Clamp(pct)
	if err := s.Placement.Propose(pct); err != nil {
		return models.Point{}, err
	}
	return pct, nil
}

// Assign commits the placing candidate to a component.
func (s *Scene) Assign(componentID string, manualRPM *float64) error {
	return s.Placement.Commit(s.Markers, componentID, manualRPM)
}

// Options returns the component selection list for the current search term.
func (s *Scene) Options() []OptionGroup {
	return Options(s.Catalog, s.Markers, s.Placement.Search())
}

// ToggleEdit flips edit mode, discarding any candidate.
func (s *Scene) ToggleEdit() bool {
	return s.Placement.ToggleEdit()
}

// ResetView restores the identity transform and dismisses the candidate.
func (s *Scene) ResetView() {
	s.Viewport.Reset()
	s.Placement.Dismiss()
	s.gesture = Gesture{}
}

// BeginImport gates placement while a new drawing is being imported.
func (s *Scene) BeginImport() {
	s.Surface.BeginImport()
}

// CompleteImport shows a new drawing, resetting the view and the candidate.
func (s *Scene) CompleteImport(ref string, natural Size) {
	s.Surface.CompleteImport(ref, natural)
	s.ResetView()
}

// FailImport rolls the drawing back after a failed import.
func (s *Scene) FailImport(msg string) {
	s.Surface.FailImport(msg)
}

// Restore loads persisted vision state. It returns the IDs of dropped orphan markers.
func (s *Scene) Restore(markers map[string]models.Marker, view models.ViewState, drawingRef string) []string {
	orphans := s.Markers.Load(markers)
	s.Viewport = NewViewport(view)
	s.Surface.Restore(drawingRef)
	s.Placement = &Placement{}
	s.gesture = Gesture{}
	return orphans
}
