package vision

import (
	"testing"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func ptr(v float64) *float64 { return &v }

func TestMarkerStore_AtMostOnePerComponent(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))

	require.NoError(t, s.Add("06-SEC-001", models.Point{X: 10, Y: 20}, nil))
	err := s.Add("06-SEC-001", models.Point{X: 30, Y: 40}, nil)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	m, ok := s.Get("06-SEC-001")
	require.True(t, ok)
	assert.Equal(t, models.Point{X: 10, Y: 20}, m.Position())
}

func TestMarkerStore_Add(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))

	assert.ErrorIs(t, s.Add("99-XXX-000", models.Point{}, nil), ErrUnknownComponent)
	assert.ErrorIs(t, s.Add("06-CG-021", models.Point{}, ptr(nan())), ErrInvalidRPM)

	require.NoError(t, s.Add("06-CG-021", models.Point{X: -5, Y: 140}, ptr(500)))
	m, _ := s.Get("06-CG-021")
	assert.Equal(t, models.Point{X: 0, Y: 100}, m.Position())
	require.NotNil(t, m.ManualRPM)
	assert.Equal(t, 500.0, *m.ManualRPM)
}

func TestMarkerStore_MoveClamps(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))
	require.NoError(t, s.Add("06-RSO-001", models.Point{X: 50, Y: 50}, nil))

	require.NoError(t, s.Move("06-RSO-001", models.Point{X: 101, Y: -0.5}))
	m, _ := s.Get("06-RSO-001")
	assert.Equal(t, models.Point{X: 100, Y: 0}, m.Position())

	assert.ErrorIs(t, s.Move("06-RSO-002", models.Point{}), ErrNoMarker)
}

func TestMarkerStore_ManualRPM(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))
	require.NoError(t, s.Add("06-SEC-002", models.Point{}, nil))

	require.NoError(t, s.SetManualRPM("06-SEC-002", ptr(500)))
	m, _ := s.Get("06-SEC-002")
	require.NotNil(t, m.ManualRPM)
	assert.Equal(t, 500.0, *m.ManualRPM)

	assert.ErrorIs(t, s.SetManualRPM("06-SEC-002", ptr(inf())), ErrInvalidRPM)
	m, _ = s.Get("06-SEC-002")
	assert.Equal(t, 500.0, *m.ManualRPM, "rejected override leaves the previous one")

	require.NoError(t, s.SetManualRPM("06-SEC-002", nil))
	m, _ = s.Get("06-SEC-002")
	assert.Nil(t, m.ManualRPM)
}

func TestMarkerStore_RemoveMakesReselectable(t *testing.T) {
	cat := newTestCatalog(t)
	s := NewMarkerStore(cat)
	require.NoError(t, s.Add("06-CG-022", models.Point{X: 1, Y: 1}, nil))
	require.True(t, optionDisabled(Options(cat, s, "06-CG-022"), "06-CG-022"))

	assert.True(t, s.Remove("06-CG-022"))
	assert.False(t, s.Remove("06-CG-022"))
	assert.False(t, optionDisabled(Options(cat, s, "06-CG-022"), "06-CG-022"))
	assert.NoError(t, s.Add("06-CG-022", models.Point{X: 2, Y: 2}, nil))
}

func TestMarkerStore_LoadDropsOrphans(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))
	orphans := s.Load(map[string]models.Marker{
		"06-SEC-001": {X: 12, Y: 130},
		"06-CG-999":  {X: 1, Y: 1},
		"legacy":     {X: 2, Y: 2},
		"06-RSO-003": {X: 5, Y: 5, ManualRPM: ptr(nan())},
	})

	assert.Equal(t, []string{"06-CG-999", "legacy"}, orphans)
	assert.Equal(t, []string{"06-RSO-003", "06-SEC-001"}, s.IDs())

	m, _ := s.Get("06-SEC-001")
	assert.Equal(t, 100.0, m.Y)
	m, _ = s.Get("06-RSO-003")
	assert.Nil(t, m.ManualRPM)
}

func TestMarkerStore_SnapshotIsACopy(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))
	require.NoError(t, s.Add("06-SEC-001", models.Point{X: 1, Y: 2}, ptr(10)))

	snap := s.Snapshot()
	*snap["06-SEC-001"].ManualRPM = 99
	delete(snap, "06-SEC-001")

	m, ok := s.Get("06-SEC-001")
	require.True(t, ok)
	assert.Equal(t, 10.0, *m.ManualRPM)
}

func TestMarkerStore_HitTest(t *testing.T) {
	s := NewMarkerStore(newTestCatalog(t))
	require.NoError(t, s.Add("06-SEC-001", models.Point{X: 50, Y: 50}, nil))
	require.NoError(t, s.Add("06-SEC-002", models.Point{X: 52, Y: 50}, nil))
	r := Rect{Left: 0, Top: 0, Width: 1000, Height: 500}

	id, ok := s.HitTest(models.Point{X: 512, Y: 250}, r, 14)
	require.True(t, ok)
	assert.Equal(t, "06-SEC-002", id)

	_, ok = s.HitTest(models.Point{X: 700, Y: 250}, r, 14)
	assert.False(t, ok)

	_, ok = s.HitTest(models.Point{X: 500, Y: 250}, Rect{}, 14)
	assert.False(t, ok)
}

func optionDisabled(groups []OptionGroup, id string) bool {
	for _, g := range groups {
		for _, o := range g.Options {
			if o.ComponentID == id {
				return o.Disabled
			}
		}
	}
	return false
}
