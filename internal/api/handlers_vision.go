// handlers_vision.go - Marker overlay and viewport handlers
package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/vision"
)

// HandleToggleEdit flips edit mode.
func (h *Handler) HandleToggleEdit(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if _, err := ctrl.ToggleEdit(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandlePointer dispatches pointer down/move/up/click events.
func (h *Handler) HandlePointer(c echo.Context) error {
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	ev := req.event()
	switch action := c.Param("action"); action {
	case "down":
		_, err = ctrl.PointerDown(ev)
	case "move":
		err = ctrl.PointerMove(ev)
	case "up":
		_, err = ctrl.PointerUp()
	case "click":
		if _, err = ctrl.Click(ev); ignoredClick(err) {
			h.log.Debug("click ignored", "user", ctrl.UserID(), "reason", err)
			err = nil
		}
	default:
		return NewNotFoundError("pointer action", action)
	}
	if err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// ignoredClick reports click outcomes that leave the scene untouched without
// being a client error: edit mode off, a click ending a drag, a drawing still
// loading, or a point off the drawing.
func ignoredClick(err error) bool {
	return errors.Is(err, vision.ErrNotEditing) ||
		errors.Is(err, vision.ErrNoCandidate) ||
		errors.Is(err, vision.ErrSurfaceBusy) ||
		errors.Is(err, vision.ErrNoDrawing) ||
		errors.Is(err, vision.ErrOutsideImage)
}

// HandleWheel zooms by a scroll delta.
func (h *Handler) HandleWheel(c echo.Context) error {
	var req wheelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.Wheel(req.DeltaY); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleZoom applies one zoom button step or resets the view.
func (h *Handler) HandleZoom(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	switch dir := c.Param("dir"); dir {
	case "in":
		err = ctrl.ZoomIn()
	case "out":
		err = ctrl.ZoomOut()
	default:
		return NewNotFoundError("zoom direction", dir)
	}
	if err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleResetView restores the identity transform.
func (h *Handler) HandleResetView(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.ResetView(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleCandidates returns the component selection list filtered by ?q=.
func (h *Handler) HandleCandidates(c echo.Context) error {
	ctrl := h.controller(c)
	return c.JSON(http.StatusOK, ctrl.Candidates(c.QueryParam("q")))
}

// HandleAssign binds the placing candidate to a component.
func (h *Handler) HandleAssign(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.ComponentID == "" {
		return NewValidationError("componentId")
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.Assign(req.ComponentID, req.ManualRPM); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleCancel dismisses the placing candidate.
func (h *Handler) HandleCancel(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.Cancel(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleSetMarkerRPM sets or clears the manual RPM of a marker. The body is
// either {manualRpm: number|null} or {text: "..."}; empty text clears.
func (h *Handler) HandleSetMarkerRPM(c echo.Context) error {
	id := c.Param("id")
	var req markerRPMRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}

	if req.Text != nil {
		err = ctrl.SetMarkerRPMText(id, *req.Text)
	} else {
		err = ctrl.SetMarkerRPM(id, req.ManualRPM)
	}
	if err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleRemoveMarker deletes one marker.
func (h *Handler) HandleRemoveMarker(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.RemoveMarker(c.Param("id")); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// HandleClearMarkers deletes every marker.
func (h *Handler) HandleClearMarkers(c echo.Context) error {
	ctrl, err := h.writable(c)
	if err != nil {
		return err
	}
	if err := ctrl.ClearMarkers(); err != nil {
		return FromDomainError(err)
	}
	return snapshot(c, ctrl)
}

// Request types

// pointerRequest carries client coordinates plus what the client measured of
// the drawing layer: its untransformed origin, or the transformed rect.
type pointerRequest struct {
	ClientX float64      `json:"clientX"`
	ClientY float64      `json:"clientY"`
	Shift   bool         `json:"shift"`
	OriginX float64      `json:"originX"`
	OriginY float64      `json:"originY"`
	Rect    *vision.Rect `json:"rect,omitempty"`
}

func (r pointerRequest) event() vision.PointerEvent {
	return vision.PointerEvent{
		Client: models.Point{X: r.ClientX, Y: r.ClientY},
		Origin: models.Point{X: r.OriginX, Y: r.OriginY},
		Rect:   r.Rect,
		Shift:  r.Shift,
	}
}

type wheelRequest struct {
	DeltaY float64 `json:"deltaY"`
}

type assignRequest struct {
	ComponentID string   `json:"componentId"`
	ManualRPM   *float64 `json:"manualRpm,omitempty"`
}

type markerRPMRequest struct {
	ManualRPM *float64 `json:"manualRpm"`
	Text      *string  `json:"text,omitempty"`
}
