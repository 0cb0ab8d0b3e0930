// Package render resolves drawing assets into raster page sizes.
package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"regexp"
	"strconv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DocumentWidth is the fixed raster width of a rendered document page.
const DocumentWidth = 1200

var (
	ErrUnsupportedPage   = errors.New("only page 1 can be rendered")
	ErrUnsupportedFormat = errors.New("unsupported drawing format")
)

// Kind distinguishes plain images from paginated documents.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// Page is a rendered raster surface.
// Height is 0 when a document page size could not be determined up front; the
// client then reports the rendered size.
type Page struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Kind   Kind   `json:"kind"`
	Format string `json:"format"`
}

// Renderer resolves page index of an asset into a raster page.
type Renderer interface {
	Render(ctx context.Context, r io.Reader, page int) (Page, error)
}

// Probe is the built-in Renderer. It decodes image headers and reads the media
// box of the first document page.
type Probe struct {
	// MaxDocumentBytes bounds how much of a document is scanned for its page box.
	MaxDocumentBytes int64
}

var pdfMagic = []byte("%PDF-")

// Render implements Renderer.
func (p Probe) Render(ctx context.Context, r io.Reader, page int) (Page, error) {
	if page != 1 {
		return Page{}, fmt.Errorf("%w: requested page %d", ErrUnsupportedPage, page)
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	br := bufio.NewReader(r)
	head, _ := br.Peek(len(pdfMagic))
	if bytes.Equal(head, pdfMagic) {
		return p.document(br)
	}

	cfg, format, err := image.DecodeConfig(br)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Page{}, fmt.Errorf("%w: empty %s image", ErrUnsupportedFormat, format)
	}
	return Page{Width: cfg.Width, Height: cfg.Height, Kind: KindImage, Format: format}, nil
}

var mediaBox = regexp.MustCompile(`/MediaBox\s*\[\s*(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s+(-?[\d.]+)\s*\]`)

func (p Probe) document(r io.Reader) (Page, error) {
	limit := p.MaxDocumentBytes
	if limit <= 0 {
		limit = 8 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return Page{}, fmt.Errorf("read document: %w", err)
	}

	page := Page{Width: DocumentWidth, Kind: KindDocument, Format: "pdf"}
	m := mediaBox.FindSubmatch(data)
	if m == nil {
		return page, nil
	}
	var box [4]float64
	for i := range box {
		box[i], err = strconv.ParseFloat(string(m[i+1]), 64)
		if err != nil {
			return page, nil
		}
	}
	w, h := box[2]-box[0], box[3]-box[1]
	if w > 0 && h > 0 {
		page.Height = int(float64(DocumentWidth)*h/w + 0.5)
	}
	return page, nil
}
