package session

import (
	"time"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/rpm-monitor/backend/internal/vision"
)

// ToggleEdit flips edit mode and returns the new flag.
func (c *Controller) ToggleEdit() (bool, error) {
	var on bool
	err := c.mutate(false, func() (bool, error) {
		on = c.scene.ToggleEdit()
		return true, nil
	})
	return on, err
}

// PointerDown starts a drag or pan session.
func (c *Controller) PointerDown(ev vision.PointerEvent) (vision.Gesture, error) {
	var g vision.Gesture
	err := c.mutate(false, func() (bool, error) {
		g = c.scene.PointerDown(ev)
		return true, nil
	})
	return g, err
}

// PointerMove advances the active drag or pan.
func (c *Controller) PointerMove(ev vision.PointerEvent) error {
	return c.mutate(true, func() (bool, error) {
		return c.scene.PointerMove(ev)
	})
}

// PointerUp ends the active drag or pan.
func (c *Controller) PointerUp() (vision.Gesture, error) {
	var g vision.Gesture
	err := c.mutate(false, func() (bool, error) {
		g = c.scene.PointerUp()
		return g.Active(), nil
	})
	return g, err
}

// Click opens a placing candidate at the clicked position.
func (c *Controller) Click(ev vision.PointerEvent) (models.Point, error) {
	var pt models.Point
	err := c.mutate(false, func() (bool, error) {
		var err error
		pt, err = c.scene.Click(ev)
		return err == nil, err
	})
	return pt, err
}

// Wheel zooms by a scroll delta.
func (c *Controller) Wheel(deltaY float64) error {
	return c.mutate(true, func() (bool, error) {
		c.scene.Viewport.Wheel(deltaY)
		return true, nil
	})
}

// ZoomIn applies one zoom-in step.
func (c *Controller) ZoomIn() error {
	return c.mutate(true, func() (bool, error) {
		c.scene.Viewport.ZoomIn()
		return true, nil
	})
}

// ZoomOut applies one zoom-out step.
func (c *Controller) ZoomOut() error {
	return c.mutate(true, func() (bool, error) {
		c.scene.Viewport.ZoomOut()
		return true, nil
	})
}

// ResetView restores the identity transform and dismisses the candidate.
func (c *Controller) ResetView() error {
	return c.mutate(true, func() (bool, error) {
		c.scene.ResetView()
		return true, nil
	})
}

// Candidates filters the selection list and returns it.
func (c *Controller) Candidates(term string) []vision.OptionGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAccess = time.Now()
	if !c.readOnly {
		c.scene.Placement.SetSearch(term)
	}
	return vision.Options(c.catalog, c.scene.Markers, term)
}

// Assign commits the placing candidate to a component.
func (c *Controller) Assign(componentID string, manualRPM *float64) error {
	return c.mutate(true, func() (bool, error) {
		return true, c.scene.Assign(componentID, manualRPM)
	})
}

// Cancel dismisses the placing candidate.
func (c *Controller) Cancel() error {
	return c.mutate(false, func() (bool, error) {
		_, had := c.scene.Placement.Candidate()
		c.scene.Placement.Dismiss()
		return had, nil
	})
}

// SetMarkerRPM sets or, with nil, clears the manual RPM of a marker.
func (c *Controller) SetMarkerRPM(componentID string, v *float64) error {
	return c.mutate(true, func() (bool, error) {
		return true, c.scene.Markers.SetManualRPM(componentID, v)
	})
}

// SetMarkerRPMText sets the manual RPM from operator text. Empty or non-numeric
// text clears the override.
func (c *Controller) SetMarkerRPMText(componentID, raw string) error {
	v, ok := rpm.ParseOptional(raw)
	if !ok {
		return c.SetMarkerRPM(componentID, nil)
	}
	return c.SetMarkerRPM(componentID, &v)
}

// RemoveMarker deletes the marker of a component.
func (c *Controller) RemoveMarker(componentID string) error {
	return c.mutate(true, func() (bool, error) {
		if !c.scene.Markers.Remove(componentID) {
			return false, vision.ErrNoMarker
		}
		return true, nil
	})
}

// ClearMarkers deletes every marker.
func (c *Controller) ClearMarkers() error {
	return c.mutate(true, func() (bool, error) {
		c.scene.Markers.Clear()
		return true, nil
	})
}

// BeginImport gates placement while a drawing is imported. Only one import runs
// at a time.
func (c *Controller) BeginImport() error {
	return c.mutate(false, func() (bool, error) {
		if c.scene.Surface.Importing() {
			return false, vision.ErrSurfaceBusy
		}
		c.scene.BeginImport()
		return true, nil
	})
}

// CompleteImport shows an imported drawing.
func (c *Controller) CompleteImport(url string, natural vision.Size) error {
	return c.mutate(true, func() (bool, error) {
		c.scene.CompleteImport(url, natural)
		return true, nil
	})
}

// FailImport rolls the drawing back after a failed import.
func (c *Controller) FailImport(msg string) error {
	return c.mutate(false, func() (bool, error) {
		c.scene.FailImport(msg)
		return true, nil
	})
}

// UseExampleDrawing switches to the bundled example drawing. Its size is known
// once the client has rendered it.
func (c *Controller) UseExampleDrawing() error {
	return c.mutate(true, func() (bool, error) {
		if c.scene.Surface.Importing() {
			return false, vision.ErrSurfaceBusy
		}
		c.scene.CompleteImport(c.catalog.ExampleDrawing(), vision.Size{})
		return true, nil
	})
}

// DrawingLoaded records the size at which the client rendered the drawing.
func (c *Controller) DrawingLoaded(natural vision.Size) error {
	if natural.Empty() {
		return vision.ErrEmptyRect
	}
	return c.mutate(false, func() (bool, error) {
		if c.scene.Surface.Ref() == "" {
			return false, vision.ErrNoDrawing
		}
		c.scene.Surface.Loaded(natural)
		return true, nil
	})
}

// DrawingFailed clears a drawing the client could not decode.
func (c *Controller) DrawingFailed(msg string) error {
	return c.mutate(true, func() (bool, error) {
		c.scene.Surface.RenderFailed(msg)
		return true, nil
	})
}
