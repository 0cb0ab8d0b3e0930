package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateStores(t *testing.T) map[string]StateStore {
	t.Helper()
	dir := t.TempDir()

	duck, err := NewDuckStateStore(filepath.Join(dir, "state.duckdb"), 1, "")
	require.NoError(t, err)

	db, err := OpenSQLite(filepath.Join(dir, "local.db"))
	require.NoError(t, err)
	lite, err := NewSQLiteStateStore(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		duck.Close()
		lite.Close()
	})
	return map[string]StateStore{"duckdb": duck, "sqlite": lite}
}

func TestStateStore_ReadMissing(t *testing.T) {
	for name, store := range stateStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Read(context.Background(), "nobody")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStateStore_UpsertRoundTrip(t *testing.T) {
	manual := 500.0
	updated := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	for name, store := range stateStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := models.NewUserState("u1", []models.GroupInput{{ID: "group-2", InputRPM: 1000}})
			doc.ActiveTab = models.TabVision
			doc.CustomMarkers["06-SEC-001"] = models.Marker{X: 12.5, Y: 80, ManualRPM: &manual}
			doc.ViewState = models.ViewState{Zoom: 2.5, Offset: models.Point{X: -10, Y: 4}}
			doc.DrawingURL = "/assets/u1/a.png"
			doc.UpdatedAt = updated

			require.NoError(t, store.Upsert(ctx, "u1", doc))
			got, err := store.Read(ctx, "u1")
			require.NoError(t, err)

			assert.Equal(t, "u1", got.UserID)
			assert.Equal(t, models.TabVision, got.ActiveTab)
			assert.Equal(t, models.DefaultParams(), got.CalcParams)
			assert.Equal(t, doc.GroupInputs, got.GroupInputs)
			assert.Equal(t, doc.ViewState, got.ViewState)
			assert.Equal(t, "/assets/u1/a.png", got.DrawingURL)
			assert.True(t, updated.Equal(got.UpdatedAt))
			require.Contains(t, got.CustomMarkers, "06-SEC-001")
			assert.Equal(t, 500.0, *got.CustomMarkers["06-SEC-001"].ManualRPM)
		})
	}
}

func TestStateStore_LastWriteWins(t *testing.T) {
	for name, store := range stateStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := models.NewUserState("u2", nil)
			first.DrawingURL = "/assets/u2/first.png"
			require.NoError(t, store.Upsert(ctx, "u2", first))

			second := models.NewUserState("u2", nil)
			second.ActiveTab = models.TabVision
			require.NoError(t, store.Upsert(ctx, "u2", second))

			got, err := store.Read(ctx, "u2")
			require.NoError(t, err)
			assert.Equal(t, models.TabVision, got.ActiveTab)
			assert.Equal(t, "", got.DrawingURL)
			assert.NotNil(t, got.CustomMarkers)
		})
	}
}
