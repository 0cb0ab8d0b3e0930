package vision

import (
	"errors"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
)

var (
	ErrNotEditing   = errors.New("edit mode is off")
	ErrNoCandidate  = errors.New("no placement in progress")
	ErrSurfaceBusy  = errors.New("drawing is still loading")
	ErrNoDrawing    = errors.New("no drawing loaded")
	ErrOutsideImage = errors.New("point is outside the drawing")
)

// Mode is the state of the marker placement protocol.
type Mode int

const (
	ModeIdle Mode = iota
	ModeEditing
	ModePlacing
)

func (m Mode) String() string {
	switch m {
	case ModeEditing:
		return "editing"
	case ModePlacing:
		return "placing"
	default:
		return "idle"
	}
}

// Placement tracks edit mode and the transient placing candidate.
type Placement struct {
	editing   bool
	candidate *models.Point
	search    string
}

// Mode returns the current protocol state.
func (p *Placement) Mode() Mode {
	switch {
	case !p.editing:
		return ModeIdle
	case p.candidate != nil:
		return ModePlacing
	default:
		return ModeEditing
	}
}

// Editing reports whether edit mode is on.
func (p *Placement) Editing() bool {
	return p.editing
}

// ToggleEdit flips edit mode and discards any candidate. It returns the new mode flag.
func (p *Placement) ToggleEdit() bool {
	p.SetEditing(!p.editing)
	return p.editing
}

// SetEditing switches edit mode on or off, discarding any candidate.
func (p *Placement) SetEditing(on bool) {
	p.editing = on
	p.candidate = nil
}

// Propose opens a placing candidate at the percentage position pt.
func (p *Placement) Propose(pt models.Point) error {
	if !p.editing {
		return ErrNotEditing
	}
	p.candidate = &pt
	p.search = ""
	return nil
}

// Candidate returns the pending position.
func (p *Placement) Candidate() (models.Point, bool) {
	if p.candidate == nil {
		return models.Point{}, false
	}
	return *p.candidate, true
}

// Dismiss drops the pending candidate without creating a marker.
func (p *Placement) Dismiss() {
	p.candidate = nil
}

// Search returns the selection list filter.
func (p *Placement) Search() string {
	return p.search
}

// SetSearch updates the selection list filter.
func (p *Placement) SetSearch(term string) {
	p.search = term
}

// Commit assigns the pending candidate to component id.
func (p *Placement) Commit(store *MarkerStore, id string, manualRPM *float64) error {
	at, ok := p.Candidate()
	if !ok {
		return ErrNoCandidate
	}
	if err := store.Add(id, at, manualRPM); err != nil {
		return err
	}
	p.candidate = nil
	return nil
}

// Option is one entry of the component selection list.
type Option struct {
	ComponentID string               `json:"componentId"`
	Type        models.ComponentType `json:"type"`
	Disabled    bool                 `json:"disabled"`
}

// OptionGroup lists the options of one catalog group.
type OptionGroup struct {
	GroupID   string   `json:"groupId"`
	GroupName string   `json:"groupName"`
	Options   []Option `json:"options"`
}

// Options returns the selection list for term. Components that already carry a
// marker are listed but disabled.
func Options(cat *catalog.Catalog, store *MarkerStore, term string) []OptionGroup {
	groups := cat.Filter(term)
	out := make([]OptionGroup, 0, len(groups))
	for _, g := range groups {
		og := OptionGroup{GroupID: g.ID, GroupName: g.Name}
		for _, c := range g.Components {
			og.Options = append(og.Options, Option{
				ComponentID: c.ID,
				Type:        c.Type,
				Disabled:    store.Has(c.ID),
			})
		}
		out = append(out, og)
	}
	return out
}
