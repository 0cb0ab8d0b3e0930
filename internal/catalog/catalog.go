// Package catalog holds the static group/component reference data of the machine.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rpm-monitor/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// ErrEmpty is returned when a catalog file defines no groups or components.
var ErrEmpty = errors.New("catalog has no components")

// Entry is a component together with the group that lists it.
type Entry struct {
	Component models.MechanicalComponent `json:"component"`
	GroupID   string                     `json:"groupId"`
	GroupName string                     `json:"groupName"`
}

// Catalog is the immutable group/component reference loaded once at startup.
type Catalog struct {
	groups         []models.Group
	index          map[string]Entry
	defaults       models.TransmissionParams
	exampleDrawing string
}

type catalogFile struct {
	Defaults       *models.TransmissionParams `yaml:"defaults"`
	ExampleDrawing string                     `yaml:"example_drawing"`
	Groups         []models.Group             `yaml:"groups"`
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(strings.NewReader(string(defaultCatalog)))
}

// Load reads a catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse decodes and validates a YAML catalog.
func Parse(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c, err := New(f.Groups)
	if err != nil {
		return nil, err
	}
	if f.Defaults != nil {
		c.defaults = *f.Defaults
	}
	c.exampleDrawing = f.ExampleDrawing
	return c, nil
}

// New builds a catalog from groups. Component IDs may repeat across groups;
// lookups resolve to the first group listing the ID.
func New(groups []models.Group) (*Catalog, error) {
	c := &Catalog{
		groups:   groups,
		index:    make(map[string]Entry),
		defaults: models.DefaultParams(),
	}

	for gi, g := range groups {
		if g.ID == "" {
			return nil, fmt.Errorf("group %d: missing id", gi)
		}
		for ci, comp := range g.Components {
			if comp.ID == "" {
				return nil, fmt.Errorf("group %s component %d: missing id", g.ID, ci)
			}
			if !comp.Type.Valid() {
				return nil, fmt.Errorf("component %s: unknown type %q", comp.ID, comp.Type)
			}
			if _, seen := c.index[comp.ID]; !seen {
				c.index[comp.ID] = Entry{Component: comp, GroupID: g.ID, GroupName: g.Name}
			}
		}
	}

	if len(c.index) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

// Groups returns the groups in catalog order. The slice must not be modified.
func (c *Catalog) Groups() []models.Group {
	return c.groups
}

// Defaults returns the factory transmission parameters.
func (c *Catalog) Defaults() models.TransmissionParams {
	return c.defaults
}

// ExampleDrawing returns the reference of the bundled sample drawing.
func (c *Catalog) ExampleDrawing() string {
	return c.exampleDrawing
}

// Lookup resolves a component ID.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.index[id]
	return e, ok
}

// Contains reports whether id names a catalog component.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of distinct component IDs.
func (c *Catalog) Len() int {
	return len(c.index)
}

// Group returns the group with the given ID.
func (c *Catalog) Group(id string) (models.Group, bool) {
	for _, g := range c.groups {
		if g.ID == id {
			return g, true
		}
	}
	return models.Group{}, false
}

// DefaultInputs returns a zero entry RPM for every group.
func (c *Catalog) DefaultInputs() []models.GroupInput {
	inputs := make([]models.GroupInput, len(c.groups))
	for i, g := range c.groups {
		inputs[i] = models.GroupInput{ID: g.ID}
	}
	return inputs
}

// Filter returns the groups whose components match term, keeping only the matching
// components. A component matches when its ID or its group name contains term,
// ignoring case. Groups left without components are dropped.
func (c *Catalog) Filter(term string) []models.Group {
	needle := strings.ToLower(term)

	var out []models.Group
	for _, g := range c.groups {
		groupHit := strings.Contains(strings.ToLower(g.Name), needle)

		var comps []models.MechanicalComponent
		for _, comp := range g.Components {
			if groupHit || strings.Contains(strings.ToLower(comp.ID), needle) {
				comps = append(comps, comp)
			}
		}
		if len(comps) > 0 {
			out = append(out, models.Group{ID: g.ID, Name: g.Name, Components: comps})
		}
	}
	return out
}
