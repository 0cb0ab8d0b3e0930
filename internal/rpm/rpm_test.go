package rpm

import (
	"math"
	"testing"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats/scalar"
)

const tol = 1e-9

var allTypes = []models.ComponentType{
	models.ComponentDryer,
	models.ComponentBlower,
	models.ComponentGuideRoller,
}

func TestDerive_ZeroEntryIsZero(t *testing.T) {
	params := []models.TransmissionParams{
		models.DefaultParams(),
		{Rodete: 1, EngrenagemSecador: 1, Soprador: 1, CilindroGuia: 1},
		{Rodete: 0.5, EngrenagemSecador: 900, Soprador: 12.25, CilindroGuia: 7000},
	}
	for _, p := range params {
		for _, typ := range allTypes {
			assert.Equal(t, 0.0, Derive(typ, 0, p), "type %s params %+v", typ, p)
		}
	}
}

func TestDerive_Ratios(t *testing.T) {
	p := models.TransmissionParams{Rodete: 300, EngrenagemSecador: 1000, Soprador: 250, CilindroGuia: 400}
	for _, r := range []float64{1, 12.5, 999, 1e6} {
		sec := Derive(models.ComponentDryer, r, p)
		if !scalar.EqualWithinAbsOrRel(sec, r*p.Rodete/p.EngrenagemSecador, tol, tol) {
			t.Errorf("SEC(%v) = %v", r, sec)
		}
		rso := Derive(models.ComponentBlower, r, p)
		if !scalar.EqualWithinAbsOrRel(rso, sec*p.EngrenagemSecador/p.Soprador, tol, tol) {
			t.Errorf("RSO(%v) = %v", r, rso)
		}
		cg := Derive(models.ComponentGuideRoller, r, p)
		if !scalar.EqualWithinAbsOrRel(cg, sec*p.EngrenagemSecador/p.CilindroGuia, tol, tol) {
			t.Errorf("CG(%v) = %v", r, cg)
		}
	}
}

func TestDerive_FactoryScenario(t *testing.T) {
	p := models.DefaultParams()

	assert.Equal(t, "430.36", Format(Derive(models.ComponentDryer, 1000, p)))
	assert.Equal(t, "1377.14", Format(Derive(models.ComponentBlower, 1000, p)))
	// 1000 * 482 / 352
	assert.Equal(t, "1369.32", Format(Derive(models.ComponentGuideRoller, 1000, p)))
	assert.InDelta(t, 430.36, Round2(Derive(models.ComponentDryer, 1000, p)), 1e-9)
}

func TestDerive_UnknownType(t *testing.T) {
	assert.Equal(t, 0.0, Derive("XYZ", 1000, models.DefaultParams()))
}

func TestDerive_ZeroGearIsNonFinite(t *testing.T) {
	p := models.DefaultParams()
	p.EngrenagemSecador = 0

	v := Derive(models.ComponentDryer, 1000, p)
	assert.True(t, math.IsInf(v, 1))
	assert.Equal(t, Placeholder, Format(v))
	assert.Equal(t, 0.0, Sanitize(v))

	p = models.DefaultParams()
	p.Soprador = 0
	assert.False(t, Finite(Derive(models.ComponentBlower, 1000, p)))
	assert.True(t, Finite(Derive(models.ComponentGuideRoller, 1000, p)))
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1000", 1000},
		{" 12.5 ", 12.5},
		{"-3", -3},
		{".5", 0.5},
		{"1e3", 1000},
		{"42rpm", 42},
		{"", 0},
		{"abc", 0},
		{"NaN", 0},
		{"Infinity", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseInput(tt.in))
		})
	}
}

func TestTable(t *testing.T) {
	groups := []models.Group{
		{ID: "g1", Name: "PRIMEIRO", Components: []models.MechanicalComponent{
			{ID: "A-SEC", Type: models.ComponentDryer},
			{ID: "A-RSO", Type: models.ComponentBlower},
		}},
		{ID: "g2", Name: "SEGUNDO", Components: []models.MechanicalComponent{
			{ID: "B-CG", Type: models.ComponentGuideRoller},
		}},
	}
	inputs := []models.GroupInput{{ID: "g1", InputRPM: 1000}}

	t.Run("rows per component", func(t *testing.T) {
		rows := Table(groups, inputs, models.DefaultParams())
		if assert.Len(t, rows, 3) {
			assert.Equal(t, "430.36", rows[0].Display)
			assert.Equal(t, "1377.14", rows[1].Display)
			assert.Equal(t, "PRIMEIRO", rows[1].GroupName)
			// g2 has no input and derives from zero
			assert.Equal(t, 0.0, rows[2].EntryRPM)
			assert.Equal(t, "0.00", rows[2].Display)
		}
	})

	t.Run("zero gear keeps siblings", func(t *testing.T) {
		p := models.DefaultParams()
		p.Soprador = 0
		rows := Table(groups, inputs, p)
		assert.True(t, rows[0].Valid)
		assert.False(t, rows[1].Valid)
		assert.Equal(t, 0.0, rows[1].RPM)
		assert.Equal(t, Placeholder, rows[1].Display)
		assert.True(t, rows[2].Valid)
	})
}
