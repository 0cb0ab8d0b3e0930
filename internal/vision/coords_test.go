package vision

import (
	"math"
	"testing"

	"github.com/rpm-monitor/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPercent_RoundTripUnderTransform(t *testing.T) {
	natural := Size{Width: 1200, Height: 850}
	origin := models.Point{X: 40, Y: 96}
	screen := []models.Point{{X: 40, Y: 96}, {X: 333.3, Y: 410.25}, {X: 900, Y: 120}}

	for _, zoom := range []float64{0.05, 0.5, 1, 1.69, 7.3, 20} {
		for _, offset := range []models.Point{{}, {X: -250, Y: 80}, {X: 1e4, Y: -3.5}} {
			v := NewViewport(models.ViewState{Zoom: zoom, Offset: offset})
			r := v.SurfaceRect(origin, natural)
			for _, s := range screen {
				pct, err := ToPercent(s, r)
				require.NoError(t, err)
				back := FromPercent(pct, r)
				assert.InDelta(t, s.X, back.X, 1e-6, "zoom %v offset %+v", zoom, offset)
				assert.InDelta(t, s.Y, back.Y, 1e-6, "zoom %v offset %+v", zoom, offset)
			}
		}
	}
}

func TestToPercent_AnchoredAcrossZoom(t *testing.T) {
	natural := Size{Width: 1000, Height: 500}
	pct := models.Point{X: 25, Y: 80}

	for _, zoom := range []float64{0.3, 1, 4} {
		v := NewViewport(models.ViewState{Zoom: zoom, Offset: models.Point{X: 12, Y: -7}})
		r := v.SurfaceRect(models.Point{}, natural)
		got, err := ToPercent(FromPercent(pct, r), r)
		require.NoError(t, err)
		assert.InDelta(t, pct.X, got.X, 1e-9)
		assert.InDelta(t, pct.Y, got.Y, 1e-9)
	}
}

func TestToPercent_EmptyRect(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
	}{
		{"zero width", Rect{Width: 0, Height: 10}},
		{"zero height", Rect{Width: 10, Height: 0}},
		{"negative", Rect{Width: -5, Height: 10}},
		{"nan", Rect{Width: math.NaN(), Height: 10}},
		{"infinite", Rect{Width: math.Inf(1), Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToPercent(models.Point{X: 1, Y: 1}, tt.rect)
			assert.ErrorIs(t, err, ErrEmptyRect)
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want models.Point
	}{
		{models.Point{X: 50, Y: 50}, models.Point{X: 50, Y: 50}},
		{models.Point{X: -3, Y: 120}, models.Point{X: 0, Y: 100}},
		{models.Point{X: 100, Y: 0}, models.Point{X: 100, Y: 0}},
		{models.Point{X: math.NaN(), Y: math.Inf(1)}, models.Point{X: 0, Y: 100}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp(tt.in))
	}
}

func TestRect_Contains(t *testing.T) {
	r := Rect{Left: 10, Top: 10, Width: 100, Height: 50}
	assert.True(t, r.Contains(models.Point{X: 10, Y: 10}))
	assert.True(t, r.Contains(models.Point{X: 110, Y: 60}))
	assert.False(t, r.Contains(models.Point{X: 9.99, Y: 30}))
	assert.False(t, r.Contains(models.Point{X: 50, Y: 60.01}))
}
