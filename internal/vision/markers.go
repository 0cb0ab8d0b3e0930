package vision

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
)

var (
	ErrUnknownComponent = errors.New("component not in catalog")
	ErrAlreadyAssigned  = errors.New("component already has a marker")
	ErrNoMarker         = errors.New("marker not found")
	ErrInvalidRPM       = errors.New("manual rpm must be a finite number")
)

// MarkerStore maps catalog component IDs to their marker on the drawing.
// A component carries at most one marker.
type MarkerStore struct {
	catalog *catalog.Catalog
	markers map[string]models.Marker
}

// NewMarkerStore creates an empty store validated against cat.
func NewMarkerStore(cat *catalog.Catalog) *MarkerStore {
	return &MarkerStore{
		catalog: cat,
		markers: make(map[string]models.Marker),
	}
}

// Load replaces the store contents with persisted markers. Entries whose ID is not
// in the catalog are dropped and returned as orphans. Coordinates are clamped and
// non-finite overrides are discarded.
func (s *MarkerStore) Load(raw map[string]models.Marker) (orphans []string) {
	s.markers = make(map[string]models.Marker, len(raw))
	for id, m := range raw {
		if !s.catalog.Contains(id) {
			orphans = append(orphans, id)
			continue
		}
		pos := Clamp(m.Position())
		m.X, m.Y = pos.X, pos.Y
		if m.ManualRPM != nil && !rpm.Finite(*m.ManualRPM) {
			m.ManualRPM = nil
		}
		s.markers[id] = m
	}
	sort.Strings(orphans)
	return orphans
}

// Add creates a marker for id at the percentage position at.
func (s *MarkerStore) Add(id string, at models.Point, manualRPM *float64) error {
	if !s.catalog.Contains(id) {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, id)
	}
	if _, exists := s.markers[id]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyAssigned, id)
	}
	if manualRPM != nil && !rpm.Finite(*manualRPM) {
		return ErrInvalidRPM
	}
	pos := Clamp(at)
	s.markers[id] = models.Marker{X: pos.X, Y: pos.Y, ManualRPM: copyFloat(manualRPM)}
	return nil
}

// Move sets the position of an existing marker, clamped to the drawing.
func (s *MarkerStore) Move(id string, to models.Point) error {
	m, ok := s.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMarker, id)
	}
	pos := Clamp(to)
	m.X, m.Y = pos.X, pos.Y
	s.markers[id] = m
	return nil
}

// SetManualRPM sets or, with nil, clears the display override of a marker.
func (s *MarkerStore) SetManualRPM(id string, v *float64) error {
	m, ok := s.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMarker, id)
	}
	if v != nil && !rpm.Finite(*v) {
		return ErrInvalidRPM
	}
	m.ManualRPM = copyFloat(v)
	s.markers[id] = m
	return nil
}

// Remove deletes the marker of id. It reports whether one existed.
func (s *MarkerStore) Remove(id string) bool {
	if _, ok := s.markers[id]; !ok {
		return false
	}
	delete(s.markers, id)
	return true
}

// Clear removes every marker.
func (s *MarkerStore) Clear() {
	s.markers = make(map[string]models.Marker)
}

// Get returns the marker of id.
func (s *MarkerStore) Get(id string) (models.Marker, bool) {
	m, ok := s.markers[id]
	return m, ok
}

// Has reports whether id already carries a marker.
func (s *MarkerStore) Has(id string) bool {
	_, ok := s.markers[id]
	return ok
}

// Len returns the number of markers.
func (s *MarkerStore) Len() int {
	return len(s.markers)
}

// IDs returns the marked component IDs in sorted order.
func (s *MarkerStore) IDs() []string {
	ids := make([]string, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy suitable for persistence.
func (s *MarkerStore) Snapshot() map[string]models.Marker {
	out := make(map[string]models.Marker, len(s.markers))
	for id, m := range s.markers {
		m.ManualRPM = copyFloat(m.ManualRPM)
		out[id] = m
	}
	return out
}

// HitTest returns the marker whose on-screen position is closest to p and within
// radius pixels. Markers are drawn at a constant screen size regardless of zoom.
func (s *MarkerStore) HitTest(p models.Point, r Rect, radius float64) (string, bool) {
	if !r.Valid() {
		return "", false
	}

	best := ""
	bestDist := math.Inf(1)
	for _, id := range s.IDs() {
		at := FromPercent(s.markers[id].Position(), r)
		d := math.Hypot(at.X-p.X, at.Y-p.Y)
		if d <= radius && d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, best != ""
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
