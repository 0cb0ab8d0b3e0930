// Package rpm derives component speeds from a group's entry RPM and the transmission gear ratios.
package rpm

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rpm-monitor/backend/internal/models"
	"gonum.org/v1/gonum/floats/scalar"
)

// Placeholder is shown instead of a non-finite speed.
const Placeholder = "0.00"

// Derive returns the RPM of a component of type t.
//
// The gear ratio is always computed before multiplying so that results round the
// same way at two decimals regardless of operand magnitude. A zero gear parameter
// yields NaN or ±Inf; callers render that through Format and never store it.
func Derive(t models.ComponentType, entryRPM float64, p models.TransmissionParams) float64 {
	secondary := entryRPM * (p.Rodete / p.EngrenagemSecador)

	switch t {
	case models.ComponentDryer:
		return secondary
	case models.ComponentBlower:
		return secondary * (p.EngrenagemSecador / p.Soprador)
	case models.ComponentGuideRoller:
		return secondary * (p.EngrenagemSecador / p.CilindroGuia)
	default:
		return 0
	}
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize maps non-finite values to zero.
func Sanitize(v float64) float64 {
	if !Finite(v) {
		return 0
	}
	return v
}

// Round2 rounds v to two decimal places. Non-finite values become zero.
func Round2(v float64) float64 {
	return scalar.Round(Sanitize(v), 2)
}

// Format renders v with two decimals, or Placeholder if v is not finite.
func Format(v float64) string {
	if !Finite(v) {
		return Placeholder
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseInput reads an operator-entered number. Text that does not start with a
// number is treated as zero; trailing garbage after a numeric prefix is ignored.
func ParseInput(s string) float64 {
	v, ok := ParseOptional(s)
	if !ok {
		return 0
	}
	return v
}

// ParseOptional is like ParseInput but reports whether s contained a number at all.
func ParseOptional(s string) (float64, bool) {
	m := numericPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || !Finite(v) {
		return 0, false
	}
	return v, true
}
