package vision

import "strings"

// Surface is the drawing under the markers: an imported raster image or the
// first page of a document.
type Surface struct {
	ref       string
	natural   Size
	loading   bool
	importing bool
	message   string

	priorRef  string
	priorSize Size
}

// Ref returns the current drawing reference (URL), or "" when none is set.
func (s *Surface) Ref() string {
	return s.ref
}

// Natural returns the natural (untransformed) size of the drawing, if known.
func (s *Surface) Natural() Size {
	return s.natural
}

// Loading reports whether an import or render is in flight.
func (s *Surface) Loading() bool {
	return s.loading
}

// Message returns the last user-visible load failure.
func (s *Surface) Message() string {
	return s.message
}

// Importing reports whether an upload is in flight.
func (s *Surface) Importing() bool {
	return s.importing
}

// IsDocument reports whether the reference points at a paginated document.
func (s *Surface) IsDocument() bool {
	return IsDocumentRef(s.ref)
}

// Ready reports whether markers can be placed against the surface.
func (s *Surface) Ready() bool {
	return s.ref != "" && !s.loading && !s.natural.Empty()
}

// Restore sets a persisted reference. The natural size is unknown until the
// client reports the rendered surface through Loaded.
func (s *Surface) Restore(ref string) {
	s.ref = ref
	s.natural = Size{}
	s.loading = ref != ""
	s.importing = false
	s.message = ""
}

// BeginImport marks an import as in flight and remembers the current drawing for rollback.
func (s *Surface) BeginImport() {
	s.priorRef, s.priorSize = s.ref, s.natural
	s.loading = true
	s.importing = true
	s.message = ""
}

// CompleteImport switches to a freshly imported drawing.
func (s *Surface) CompleteImport(ref string, natural Size) {
	s.ref = ref
	s.natural = natural
	s.loading = natural.Empty()
	s.importing = false
	s.message = ""
	s.priorRef, s.priorSize = "", Size{}
}

// FailImport rolls back to the drawing in place before the import started.
func (s *Surface) FailImport(msg string) {
	s.ref, s.natural = s.priorRef, s.priorSize
	s.priorRef, s.priorSize = "", Size{}
	s.loading = false
	s.importing = false
	s.message = msg
}

// Loaded records the rendered size reported by the client. While an import is
// in flight the size belongs to the rollback drawing and the surface stays busy.
func (s *Surface) Loaded(natural Size) {
	if s.ref == "" {
		return
	}
	if s.importing {
		if s.priorRef == s.ref {
			s.priorSize = natural
		}
		return
	}
	s.natural = natural
	s.loading = false
	s.message = ""
}

// RenderFailed clears the drawing after the client failed to decode it. During
// an import only the rollback drawing is dropped.
func (s *Surface) RenderFailed(msg string) {
	if s.importing {
		s.priorRef, s.priorSize = "", Size{}
		return
	}
	s.ref = ""
	s.natural = Size{}
	s.loading = false
	s.message = msg
}

// IsDocumentRef reports whether ref names a PDF document.
func IsDocumentRef(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasSuffix(lower, ".pdf") || strings.HasPrefix(lower, "data:application/pdf")
}
