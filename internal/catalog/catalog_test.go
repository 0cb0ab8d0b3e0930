package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Len(t, c.Groups(), 8)
	assert.Equal(t, models.DefaultParams(), c.Defaults())
	assert.Equal(t, "/default_drawing.pdf", c.ExampleDrawing())

	e, ok := c.Lookup("06-SEC-001")
	require.True(t, ok)
	assert.Equal(t, "group-2", e.GroupID)
	assert.Equal(t, models.ComponentDryer, e.Component.Type)

	// 06-CG-029 is listed in two groups, the first one wins
	e, ok = c.Lookup("06-CG-029")
	require.True(t, ok)
	assert.Equal(t, "group-3", e.GroupID)

	assert.False(t, c.Contains("06-XXX-999"))
	assert.Len(t, c.DefaultInputs(), 8)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "groups: []", "no components"},
		{"invalid yaml", "groups: [", "parsing catalog"},
		{"bad type", "groups:\n  - id: g\n    name: G\n    components:\n      - {id: A, type: XYZ}\n", "unknown type"},
		{"missing group id", "groups:\n  - name: G\n    components:\n      - {id: A, type: SEC}\n", "missing id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := "defaults:\n  rodete: 10\n  engrenagem_secador: 20\n  soprador: 5\n  cilindro_guia: 4\ngroups:\n  - id: g1\n    name: Linha A\n    components:\n      - {id: A-1, type: RSO}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 10.0, c.Defaults().Rodete)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	c, err := New([]models.Group{
		{ID: "g1", Name: "SEGUNDO GRUPO", Components: []models.MechanicalComponent{
			{ID: "06-CG-021", Type: models.ComponentGuideRoller},
			{ID: "06-SEC-001", Type: models.ComponentDryer},
		}},
		{ID: "g2", Name: "SÉTIMO GRUPO", Components: []models.MechanicalComponent{
			{ID: "06-RSO-016", Type: models.ComponentBlower},
		}},
	})
	require.NoError(t, err)

	t.Run("empty term keeps everything", func(t *testing.T) {
		assert.Len(t, c.Filter(""), 2)
	})

	t.Run("matches component id case-insensitively", func(t *testing.T) {
		got := c.Filter("sec-0")
		require.Len(t, got, 1)
		require.Len(t, got[0].Components, 1)
		assert.Equal(t, "06-SEC-001", got[0].Components[0].ID)
	})

	t.Run("matches group name", func(t *testing.T) {
		got := c.Filter("sétimo")
		require.Len(t, got, 1)
		assert.Equal(t, "g2", got[0].ID)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, c.Filter("nothing"))
	})
}
