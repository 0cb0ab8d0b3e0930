package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func encode(t *testing.T, enc func(*bytes.Buffer, image.Image) error, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, img))
	return &buf
}

func TestProbe_Images(t *testing.T) {
	tests := []struct {
		name   string
		enc    func(*bytes.Buffer, image.Image) error
		format string
	}{
		{"png", func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) }, "png"},
		{"bmp", func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) }, "bmp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Probe{}.Render(context.Background(), encode(t, tt.enc, 640, 480), 1)
			require.NoError(t, err)
			assert.Equal(t, Page{Width: 640, Height: 480, Kind: KindImage, Format: tt.format}, page)
		})
	}
}

func TestProbe_Document(t *testing.T) {
	doc := "%PDF-1.4\n1 0 obj << /Type /Page /MediaBox [0 0 842 595] >> endobj\n%%EOF"
	page, err := Probe{}.Render(context.Background(), strings.NewReader(doc), 1)
	require.NoError(t, err)
	assert.Equal(t, DocumentWidth, page.Width)
	assert.Equal(t, 848, page.Height)
	assert.Equal(t, KindDocument, page.Kind)

	page, err = Probe{}.Render(context.Background(), strings.NewReader("%PDF-1.7\nno box"), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Height)
}

func TestProbe_OnlyFirstPage(t *testing.T) {
	_, err := Probe{}.Render(context.Background(), strings.NewReader("%PDF-1.4"), 2)
	assert.ErrorIs(t, err, ErrUnsupportedPage)
}

func TestProbe_Unsupported(t *testing.T) {
	_, err := Probe{}.Render(context.Background(), strings.NewReader("plain text, not a drawing"), 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
