// Package web provides embedded static files for air-gapped deployment: the
// example technical drawing and, when built into public/, the frontend.
package web

import (
	"embed"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed public
var staticFiles embed.FS

// ExampleDrawingFile is the bundled example drawing, served at the root.
const ExampleDrawingFile = "default_drawing.pdf"

// GetFileSystem returns the embedded filesystem with the public folder as root.
func GetFileSystem() (fs.FS, error) {
	return fs.Sub(staticFiles, "public")
}

// RegisterStaticRoutes registers the static file routes with Echo.
// The API routes should be registered before calling this function.
func RegisterStaticRoutes(e *echo.Echo) error {
	staticFS, err := GetFileSystem()
	if err != nil {
		return err
	}

	fileServer := http.FileServer(http.FS(staticFS))
	spa := HasEmbeddedFrontend()

	e.GET("/*", func(c echo.Context) error {
		requestPath := path.Clean(c.Request().URL.Path)
		if requestPath == "." {
			requestPath = "/"
		}

		file, err := staticFS.Open(strings.TrimPrefix(requestPath, "/"))
		if err != nil {
			if !spa {
				return echo.NewHTTPError(http.StatusNotFound, "not found")
			}
			// Likely a frontend route; let the frontend router handle it
			return serveIndexHTML(c, staticFS)
		}
		defer file.Close()

		stat, err := file.Stat()
		if err != nil || stat.IsDir() {
			if !spa {
				return echo.NewHTTPError(http.StatusNotFound, "not found")
			}
			return serveIndexHTML(c, staticFS)
		}

		fileServer.ServeHTTP(c.Response(), c.Request())
		return nil
	})

	return nil
}

// serveIndexHTML serves the main index.html for SPA routing
func serveIndexHTML(c echo.Context, staticFS fs.FS) error {
	indexFile, err := staticFS.Open("index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index.html not found")
	}
	defer indexFile.Close()

	content, err := io.ReadAll(indexFile)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read index.html")
	}

	return c.HTMLBlob(http.StatusOK, content)
}

// HasEmbeddedFrontend returns true if a frontend build has been embedded.
func HasEmbeddedFrontend() bool {
	_, err := fs.Stat(staticFiles, "public/index.html")
	return err == nil
}

// OpenExampleDrawing opens the bundled example drawing.
func OpenExampleDrawing() (fs.File, error) {
	return staticFiles.Open("public/" + ExampleDrawingFile)
}
