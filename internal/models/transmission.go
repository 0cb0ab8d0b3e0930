// Package models contains domain types for the RPM Monitor.
package models

// ComponentType tags a mechanical component in the dryer transmission chain.
type ComponentType string

const (
	ComponentDryer       ComponentType = "SEC" // secador (dryer cylinder)
	ComponentBlower      ComponentType = "RSO" // soprador (blower)
	ComponentGuideRoller ComponentType = "CG"  // cilindro guia (guide cylinder)
)

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentDryer, ComponentBlower, ComponentGuideRoller:
		return true
	}
	return false
}

// TransmissionParams holds the gear and impeller tooth counts shared by every group.
// A zero value marks a parameter as unset.
type TransmissionParams struct {
	Rodete            float64 `json:"rodete" yaml:"rodete" msgpack:"rodete"`
	EngrenagemSecador float64 `json:"engrenagemSecador" yaml:"engrenagem_secador" msgpack:"engrenagemSecador"`
	Soprador          float64 `json:"soprador" yaml:"soprador" msgpack:"soprador"`
	CilindroGuia      float64 `json:"cilindroGuia" yaml:"cilindro_guia" msgpack:"cilindroGuia"`
}

// DefaultParams returns the factory transmission parameters.
func DefaultParams() TransmissionParams {
	return TransmissionParams{
		Rodete:            482,
		EngrenagemSecador: 1120,
		Soprador:          350,
		CilindroGuia:      352,
	}
}

// ParamKey names a single field of TransmissionParams in API requests.
type ParamKey string

const (
	ParamRodete            ParamKey = "rodete"
	ParamEngrenagemSecador ParamKey = "engrenagemSecador"
	ParamSoprador          ParamKey = "soprador"
	ParamCilindroGuia      ParamKey = "cilindroGuia"
)

// With returns a copy of p with the named field set to v.
// The second result is false when key is unknown.
func (p TransmissionParams) With(key ParamKey, v float64) (TransmissionParams, bool) {
	switch key {
	case ParamRodete:
		p.Rodete = v
	case ParamEngrenagemSecador:
		p.EngrenagemSecador = v
	case ParamSoprador:
		p.Soprador = v
	case ParamCilindroGuia:
		p.CilindroGuia = v
	default:
		return p, false
	}
	return p, true
}
