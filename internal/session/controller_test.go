package session

import (
	"testing"
	"time"

	"github.com/rpm-monitor/backend/internal/catalog"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/testutil"
	"github.com/rpm-monitor/backend/internal/vision"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	return cat
}

func newTestController(t *testing.T, store *testutil.MockStateStore) *Controller {
	t.Helper()
	c := NewController(Config{
		UserID:   "user-0001",
		Catalog:  newTestCatalog(t),
		Store:    store,
		Debounce: time.Hour,
	})
	t.Cleanup(c.Close)
	return c
}

func click(x, y float64) vision.PointerEvent {
	return vision.PointerEvent{Client: models.Point{X: x, Y: y}}
}

// placeMarker loads a 1000x500 drawing and assigns a marker at the given screen point.
func placeMarker(t *testing.T, c *Controller, id string, x, y float64) {
	t.Helper()
	snap := c.Snapshot()
	if snap.Drawing.URL == "" {
		require.NoError(t, c.BeginImport())
		require.NoError(t, c.CompleteImport("/assets/user-0001/a.png", vision.Size{Width: 1000, Height: 500}))
	}
	if !c.Snapshot().Editing {
		_, err := c.ToggleEdit()
		require.NoError(t, err)
	}
	_, err := c.Click(click(x, y))
	require.NoError(t, err)
	require.NoError(t, c.Assign(id, nil))
}

func TestController_Defaults(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	snap := c.Snapshot()

	assert.Equal(t, models.TabCalculator, snap.ActiveTab)
	assert.Equal(t, models.DefaultParams(), snap.Params)
	assert.Len(t, snap.Inputs, 8)
	assert.True(t, snap.Collapsed["group-2"])
	assert.Equal(t, "idle", snap.Mode)
	assert.Empty(t, snap.Markers)
	for _, row := range snap.Rows {
		assert.Equal(t, "0.00", row.Display)
	}
}

func TestController_CalculatorInputs(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())

	require.NoError(t, c.SetGroupRPM("group-2", "1000"))
	rows := c.Table()
	byID := map[string]string{}
	for _, r := range rows {
		if r.GroupID == "group-2" {
			byID[r.ComponentID] = r.Display
		}
	}
	assert.Equal(t, "430.36", byID["06-SEC-001"])
	assert.Equal(t, "1377.14", byID["06-RSO-001"])
	assert.Equal(t, "1369.32", byID["06-CG-021"])

	t.Run("non-numeric input is zero", func(t *testing.T) {
		require.NoError(t, c.SetGroupRPM("group-2", "abc"))
		for _, r := range c.Table() {
			if r.GroupID == "group-2" {
				assert.Equal(t, "0.00", r.Display)
			}
		}
	})

	t.Run("zero gear only affects dependent rows", func(t *testing.T) {
		require.NoError(t, c.SetGroupRPM("group-2", "1000"))
		require.NoError(t, c.SetParam(models.ParamSoprador, "0"))
		for _, r := range c.Table() {
			if r.GroupID != "group-2" {
				continue
			}
			switch r.Type {
			case models.ComponentBlower:
				assert.False(t, r.Valid)
				assert.Equal(t, "0.00", r.Display)
				assert.Equal(t, 0.0, r.RPM)
			case models.ComponentDryer:
				assert.Equal(t, "430.36", r.Display)
			}
		}
	})

	t.Run("unknown keys", func(t *testing.T) {
		assert.ErrorIs(t, c.SetGroupRPM("group-99", "1"), ErrUnknownGroup)
		assert.ErrorIs(t, c.SetParam("gear", "1"), ErrUnknownParam)
		assert.ErrorIs(t, c.SetTab("settings"), ErrInvalidTab)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, c.ResetCalculator())
		snap := c.Snapshot()
		assert.Equal(t, models.DefaultParams(), snap.Params)
		for _, in := range snap.Inputs {
			assert.Equal(t, 0.0, in.InputRPM)
		}
	})
}

func TestController_ManualOverrideDisplay(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	require.NoError(t, c.SetGroupRPM("group-2", "1000"))
	placeMarker(t, c, "06-SEC-001", 250, 100)

	m, ok := c.Snapshot().Marker("06-SEC-001")
	require.True(t, ok)
	assert.Equal(t, "430.36", m.Display)
	assert.InDelta(t, 25, m.X, 1e-9)
	assert.InDelta(t, 20, m.Y, 1e-9)
	assert.True(t, m.Moving)

	require.NoError(t, c.SetMarkerRPMText("06-SEC-001", "500"))
	m, _ = c.Snapshot().Marker("06-SEC-001")
	assert.Equal(t, "500.00", m.Display)

	require.NoError(t, c.SetGroupRPM("group-2", "2000"))
	m, _ = c.Snapshot().Marker("06-SEC-001")
	assert.Equal(t, "500.00", m.Display, "override wins over the derived value")

	require.NoError(t, c.SetMarkerRPMText("06-SEC-001", ""))
	m, _ = c.Snapshot().Marker("06-SEC-001")
	assert.Equal(t, "860.71", m.Display)
	assert.Nil(t, m.ManualRPM)

	require.NoError(t, c.SetMarkerRPMText("06-SEC-001", "0"))
	m, _ = c.Snapshot().Marker("06-SEC-001")
	assert.False(t, m.Moving)
}

func TestController_RemoveMakesReselectable(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	placeMarker(t, c, "06-CG-021", 100, 100)

	disabled := func() bool {
		for _, g := range c.Candidates("06-CG-021") {
			for _, o := range g.Options {
				if o.ComponentID == "06-CG-021" {
					return o.Disabled
				}
			}
		}
		t.Fatal("component missing from candidates")
		return false
	}
	assert.True(t, disabled())

	_, err := c.Click(click(500, 250))
	require.NoError(t, err)
	assert.ErrorIs(t, c.Assign("06-CG-021", nil), vision.ErrAlreadyAssigned)
	require.NoError(t, c.Cancel())

	require.NoError(t, c.RemoveMarker("06-CG-021"))
	assert.False(t, disabled())
	assert.ErrorIs(t, c.RemoveMarker("06-CG-021"), vision.ErrNoMarker)

	placeMarker(t, c, "06-CG-021", 10, 10)
	require.NoError(t, c.ClearMarkers())
	assert.Empty(t, c.Snapshot().Markers)
}

func TestController_ImportLifecycle(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	require.NoError(t, c.ZoomIn())
	require.NoError(t, c.Wheel(-100))

	require.NoError(t, c.BeginImport())
	assert.ErrorIs(t, c.BeginImport(), vision.ErrSurfaceBusy)
	snap := c.Snapshot()
	assert.True(t, snap.Drawing.Loading)

	_, _ = c.ToggleEdit()
	_, err := c.Click(click(1, 1))
	assert.ErrorIs(t, err, vision.ErrSurfaceBusy)

	require.NoError(t, c.FailImport("upload failed"))
	snap = c.Snapshot()
	assert.False(t, snap.Drawing.Loading)
	assert.Equal(t, "", snap.Drawing.URL)
	assert.Equal(t, "upload failed", snap.Drawing.Error)

	require.NoError(t, c.BeginImport())
	require.NoError(t, c.CompleteImport("/assets/user-0001/b.png", vision.Size{Width: 800, Height: 600}))
	snap = c.Snapshot()
	assert.Equal(t, models.DefaultViewState(), snap.View)
	assert.Equal(t, "/assets/user-0001/b.png", snap.Drawing.URL)
	assert.Empty(t, snap.Drawing.Error)

	require.NoError(t, c.DrawingFailed("could not decode"))
	snap = c.Snapshot()
	assert.Equal(t, "", snap.Drawing.URL)
	assert.Equal(t, "could not decode", snap.Drawing.Error)
}

func TestController_RenderDuringImportKeepsPlacementGated(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	c.Restore(&models.UserState{UserID: "user-0001", DrawingURL: "/assets/user-0001/a.png"})

	require.NoError(t, c.BeginImport())
	require.NoError(t, c.DrawingLoaded(vision.Size{Width: 1000, Height: 500}))
	snap := c.Snapshot()
	assert.True(t, snap.Drawing.Loading)

	_, err := c.ToggleEdit()
	require.NoError(t, err)
	_, err = c.Click(click(100, 100))
	assert.ErrorIs(t, err, vision.ErrSurfaceBusy)
	assert.Nil(t, c.Snapshot().Candidate)

	// The size reported during the import is kept for the rollback drawing.
	require.NoError(t, c.FailImport("upload failed"))
	snap = c.Snapshot()
	assert.Equal(t, "/assets/user-0001/a.png", snap.Drawing.URL)
	assert.False(t, snap.Drawing.Loading)
	assert.Equal(t, 1000.0, snap.Drawing.Width)

	_, err = c.Click(click(100, 100))
	assert.NoError(t, err)
}

func TestController_ExampleDrawingRejectedDuringImport(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	c.Restore(&models.UserState{UserID: "user-0001", DrawingURL: "/assets/user-0001/a.png"})

	require.NoError(t, c.BeginImport())
	assert.ErrorIs(t, c.UseExampleDrawing(), vision.ErrSurfaceBusy)

	require.NoError(t, c.FailImport("upload failed"))
	assert.Equal(t, "/assets/user-0001/a.png", c.Snapshot().Drawing.URL)
}

func TestController_ExampleDrawing(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	require.NoError(t, c.UseExampleDrawing())

	snap := c.Snapshot()
	assert.Equal(t, "/default_drawing.pdf", snap.Drawing.URL)
	assert.True(t, snap.Drawing.IsDocument)
	assert.True(t, snap.Drawing.Loading)

	assert.ErrorIs(t, c.DrawingLoaded(vision.Size{}), vision.ErrEmptyRect)
	require.NoError(t, c.DrawingLoaded(vision.Size{Width: 1200, Height: 848}))
	snap = c.Snapshot()
	assert.False(t, snap.Drawing.Loading)
	assert.Equal(t, 848.0, snap.Drawing.Height)
}

func TestController_ReadOnlyWhenSignedOut(t *testing.T) {
	c := NewController(Config{Catalog: newTestCatalog(t), ReadOnly: true})
	defer c.Close()

	assert.ErrorIs(t, c.SetTab(models.TabVision), ErrReadOnly)
	assert.ErrorIs(t, c.SetGroupRPM("group-2", "1"), ErrReadOnly)
	_, err := c.ToggleEdit()
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.ErrorIs(t, c.ZoomIn(), ErrReadOnly)

	snap := c.Snapshot()
	assert.True(t, snap.ReadOnly)
	assert.NotEmpty(t, c.Candidates(""))
}

func TestController_DebouncedSave(t *testing.T) {
	store := testutil.NewMockStateStore()
	c := NewController(Config{
		UserID:   "user-0002",
		Catalog:  newTestCatalog(t),
		Store:    store,
		Debounce: 20 * time.Millisecond,
	})
	defer c.Close()

	require.NoError(t, c.SetTab(models.TabVision))
	require.NoError(t, c.SetGroupRPM("group-3", "750"))
	require.NoError(t, c.ZoomIn())

	require.Eventually(t, func() bool { return store.Writes() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, store.Writes())

	doc := store.Doc("user-0002")
	require.NotNil(t, doc)
	assert.Equal(t, models.TabVision, doc.ActiveTab)
	assert.InDelta(t, 1.3, doc.ViewState.Zoom, 1e-12)
	for _, in := range doc.GroupInputs {
		if in.ID == "group-3" {
			assert.Equal(t, 750.0, in.InputRPM)
		}
	}
	assert.False(t, c.Snapshot().Syncing)
}

func TestController_FailedWriteKeepsState(t *testing.T) {
	store := testutil.NewMockStateStore()
	store.SetWriteErr(testutil.ErrInjected)
	c := newTestController(t, store)

	require.NoError(t, c.SetGroupRPM("group-2", "1000"))
	assert.True(t, c.Flush())
	assert.Equal(t, 1, store.Writes())
	assert.False(t, c.Flush(), "failed writes are not retried")

	snap := c.Snapshot()
	assert.False(t, snap.Syncing)
	assert.Equal(t, 1000.0, snap.Inputs[0].InputRPM)
}

func TestController_ToggleGroupIsNotPersisted(t *testing.T) {
	store := testutil.NewMockStateStore()
	c := newTestController(t, store)

	collapsed, err := c.ToggleGroup("group-4")
	require.NoError(t, err)
	assert.False(t, collapsed)
	assert.False(t, c.Flush())

	_, err = c.ToggleGroup("nope")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func TestController_Subscribe(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	ch, cancel := c.Subscribe()

	require.NoError(t, c.SetTab(models.TabVision))
	select {
	case snap := <-ch:
		assert.Equal(t, models.TabVision, snap.ActiveTab)
	case <-time.After(time.Second):
		t.Fatal("no snapshot pushed")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestController_RestoreMergesAndDropsOrphans(t *testing.T) {
	c := newTestController(t, testutil.NewMockStateStore())
	doc := models.NewUserState("user-0001", []models.GroupInput{
		{ID: "group-3", InputRPM: 900},
		{ID: "group-retired", InputRPM: 5},
	})
	doc.ActiveTab = "bogus"
	doc.CalcParams = models.TransmissionParams{}
	doc.CustomMarkers["06-SEC-003"] = models.Marker{X: 10, Y: 10}
	doc.CustomMarkers["99-OLD-001"] = models.Marker{X: 10, Y: 10}
	doc.DrawingURL = "/assets/user-0001/a.png"
	c.Restore(doc)

	snap := c.Snapshot()
	assert.Equal(t, models.TabCalculator, snap.ActiveTab)
	assert.Equal(t, models.DefaultParams(), snap.Params)
	assert.Len(t, snap.Inputs, 8)
	assert.Equal(t, "group-2", snap.Inputs[0].ID)
	assert.Equal(t, 900.0, snap.Inputs[1].InputRPM)
	require.Len(t, snap.Markers, 1)
	assert.Equal(t, "06-SEC-003", snap.Markers[0].ComponentID)
	assert.True(t, snap.Drawing.Loading, "waits for the client to report the rendered size")
}
