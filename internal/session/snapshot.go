package session

import (
	"time"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/rpm-monitor/backend/internal/vision"
)

// MarkerView is a marker as rendered on the drawing.
type MarkerView struct {
	ComponentID string               `json:"componentId"`
	GroupID     string               `json:"groupId"`
	Type        models.ComponentType `json:"type"`
	X           float64              `json:"x"`
	Y           float64              `json:"y"`
	ManualRPM   *float64             `json:"manualRpm,omitempty"`
	RPM         float64              `json:"rpm"`
	Display     string               `json:"display"`
	Moving      bool                 `json:"moving"`
}

// DrawingView describes the drawing surface.
type DrawingView struct {
	URL        string  `json:"url,omitempty"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Loading    bool    `json:"loading"`
	IsDocument bool    `json:"isDocument"`
	Error      string  `json:"drawingError,omitempty"`
}

// Snapshot is a read-only copy of a session, as served to clients.
type Snapshot struct {
	UserID    string                    `json:"userId"`
	ReadOnly  bool                      `json:"readOnly"`
	Syncing   bool                      `json:"syncing"`
	ActiveTab models.Tab                `json:"activeTab"`
	Params    models.TransmissionParams `json:"params"`
	Inputs    []models.GroupInput       `json:"groupInputs"`
	Collapsed map[string]bool           `json:"collapsed"`
	Rows      []rpm.Row                 `json:"rows"`

	Editing   bool                 `json:"editing"`
	Mode      string               `json:"mode"`
	Candidate *models.Point        `json:"candidate,omitempty"`
	Search    string               `json:"search"`
	Markers   []MarkerView         `json:"markers"`
	View      models.ViewState     `json:"view"`
	Gesture   vision.Gesture       `json:"gesture"`
	Drawing   DrawingView          `json:"drawing"`
	Options   []vision.OptionGroup `json:"options,omitempty"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// Marker returns the view of one marker.
func (s Snapshot) Marker(id string) (MarkerView, bool) {
	for _, m := range s.Markers {
		if m.ComponentID == id {
			return m, true
		}
	}
	return MarkerView{}, false
}
