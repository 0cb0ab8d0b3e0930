package models

import "time"

// Tab is the dashboard tab the operator last had open.
type Tab string

const (
	TabCalculator Tab = "calc"
	TabVision     Tab = "vision"
)

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return t == TabCalculator || t == TabVision
}

// UserState is the persisted per-user document.
type UserState struct {
	UserID        string             `json:"user_id"`
	ActiveTab     Tab                `json:"active_tab"`
	CalcParams    TransmissionParams `json:"calc_params"`
	GroupInputs   []GroupInput       `json:"group_inputs"`
	CustomMarkers map[string]Marker  `json:"custom_markers"`
	ViewState     ViewState          `json:"view_state"`
	DrawingURL    string             `json:"drawing_url,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// NewUserState returns the document written for a user seen for the first time.
func NewUserState(userID string, inputs []GroupInput) *UserState {
	return &UserState{
		UserID:        userID,
		ActiveTab:     TabCalculator,
		CalcParams:    DefaultParams(),
		GroupInputs:   inputs,
		CustomMarkers: make(map[string]Marker),
		ViewState:     DefaultViewState(),
		UpdatedAt:     time.Now().UTC(),
	}
}
