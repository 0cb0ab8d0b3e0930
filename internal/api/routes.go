// routes.go - Route registration helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rpm-monitor/backend/internal/auth"
)

// MiddlewareConfig configures SetupMiddleware.
type MiddlewareConfig struct {
	Auth           auth.Provider
	EnableCORS     bool
	AllowOrigins   []string
	BodyLimit      string
	RequestLogging bool
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	e.HTTPErrorHandler = ErrorHandler

	if cfg.RequestLogging {
		e.Use(requestLogger())
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Path(), "/api/ws") ||
				strings.HasPrefix(c.Path(), "/assets/")
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	if cfg.Auth != nil {
		e.Use(auth.Middleware(cfg.Auth))
	}
}

// requestLogger writes one slog record per request.
func requestLogger() echo.MiddlewareFunc {
	log := slog.Default().With("component", "http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/api/health" || strings.HasSuffix(path, "/pointer/move")
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(context.Background(), level, "request", attrs...)
			return nil
		},
	})
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, h *Handler, ws *WebSocketHandler) {
	api := e.Group("/api")

	api.GET("/health", h.HandleHealth)
	api.POST("/auth/session", h.HandleCreateSession)
	api.DELETE("/auth/session", h.HandleDeleteSession)
	api.GET("/catalog", h.HandleGetCatalog)

	api.GET("/state", h.HandleGetState)
	api.PUT("/state/tab", h.HandleSetTab)

	// Calculator
	calc := api.Group("/calc")
	calc.GET("", h.HandleGetTable)
	calc.GET("/msgpack", h.HandleGetTableMsgpack)
	calc.GET("/export", h.HandleExportCSV)
	calc.PUT("/params", h.HandleSetParams)
	calc.PUT("/groups/:groupId/rpm", h.HandleSetGroupRPM)
	calc.POST("/groups/:groupId/toggle", h.HandleToggleGroup)
	calc.POST("/reset", h.HandleResetCalculator)

	// Vision overlay
	vision := api.Group("/vision")
	vision.POST("/edit", h.HandleToggleEdit)
	vision.POST("/pointer/:action", h.HandlePointer)
	vision.POST("/wheel", h.HandleWheel)
	vision.POST("/zoom/:dir", h.HandleZoom)
	vision.POST("/reset", h.HandleResetView)
	vision.GET("/candidates", h.HandleCandidates)
	vision.POST("/assign", h.HandleAssign)
	vision.POST("/cancel", h.HandleCancel)
	vision.PUT("/markers/:id/rpm", h.HandleSetMarkerRPM)
	vision.DELETE("/markers/:id", h.HandleRemoveMarker)
	vision.DELETE("/markers", h.HandleClearMarkers)

	// Technical drawing
	vision.POST("/drawing", h.HandleImportDrawing)
	vision.POST("/drawing/chunk", h.HandleImportChunk)
	vision.POST("/drawing/complete", h.HandleCompleteImport)
	vision.GET("/drawing/jobs/:jobId", h.HandleGetImportJob)
	vision.POST("/drawing/example", h.HandleExampleDrawing)
	vision.POST("/drawing/:outcome", h.HandleDrawingRendered)

	e.GET("/assets/:userId/:file", h.HandleGetAsset)

	if ws != nil {
		api.GET("/ws", ws.HandleWebSocket)
	}
}
