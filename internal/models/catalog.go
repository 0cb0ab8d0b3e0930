package models

// MechanicalComponent is a single measuring point of the machine. Catalog data, never mutated.
type MechanicalComponent struct {
	ID   string        `json:"id" yaml:"id" msgpack:"id"`
	Type ComponentType `json:"type" yaml:"type" msgpack:"type"`
}

// Group is a named, ordered collection of components driven by one entry RPM.
type Group struct {
	ID         string                `json:"id" yaml:"id"`
	Name       string                `json:"name" yaml:"name"`
	Components []MechanicalComponent `json:"components" yaml:"components"`
}

// GroupInput is the operator-entered entry RPM of a group.
type GroupInput struct {
	ID       string  `json:"id"`
	InputRPM float64 `json:"inputRPM"`
}
