package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rpm-monitor/backend/internal/api"
	"github.com/rpm-monitor/backend/internal/auth"
	"github.com/rpm-monitor/backend/internal/config"
	"github.com/rpm-monitor/backend/internal/logging"
	"github.com/rpm-monitor/backend/internal/render"
	"github.com/rpm-monitor/backend/internal/session"
	"github.com/rpm-monitor/backend/internal/storage"
	"github.com/rpm-monitor/backend/internal/upload"
	"github.com/rpm-monitor/backend/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, closeLog := logging.Setup(cfg.Advanced.LogLevel, cfg.Advanced.LogFile)
	defer closeLog()
	log := logger.With("component", "server")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Persistence.Backend, err)
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("failed to close store", "error", err)
		}
	}()

	staging, err := storage.NewStaging(cfg.Storage.StagingDirectory)
	if err != nil {
		return err
	}

	maxDrawing := cfg.MaxDrawingBytes()
	imports := upload.NewManager(staging, st.assets, render.Probe{MaxDocumentBytes: maxDrawing}, maxDrawing)
	sessions := session.NewManager(cat, st.state, cfg.Debounce())

	deps := api.Dependencies{
		Sessions:          sessions,
		Catalog:           cat,
		Imports:           imports,
		Staging:           staging,
		Assets:            st.assets,
		AllowedExtensions: cfg.AllowedExtensions(),
		Version:           Version,
		Backend:           cfg.Persistence.Backend,
	}
	var provider auth.Provider = auth.LocalProvider{UserID: cfg.Security.LocalUserID}
	if cfg.Security.RequireAuth {
		tokens := auth.NewTokenProvider()
		provider = tokens
		deps.Tokens = tokens
	}

	h := api.NewHandler(deps)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, api.MiddlewareConfig{
		Auth:           provider,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   splitOrigins(cfg.Server.AllowOrigins),
		BodyLimit:      cfg.Server.BodyLimit,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
	})
	api.RegisterRoutes(e, h, api.NewWebSocketHandler(h, int64(cfg.Advanced.WebSocketMaxMessageSize)*1024))
	if err := web.RegisterStaticRoutes(e); err != nil {
		log.Warn("failed to register static routes", "error", err)
	}

	go runCleanup(ctx, cfg, sessions, imports)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			sessions.Close()
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}

	// Write pending changes before the store closes.
	sessions.Close()
	log.Info("server stopped")
	return nil
}

// runCleanup evicts idle sessions and finished import jobs.
func runCleanup(ctx context.Context, cfg *config.AppConfig, sessions *session.Manager, imports *upload.Manager) {
	ticker := time.NewTicker(cfg.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.CleanupOldSessions(cfg.SessionTimeout())
			imports.CleanupOldJobs(cfg.JobRetention())
			slog.Debug("cleanup done", "component", "server", "sessions", sessions.Count())
		}
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func printBanner(cfg *config.AppConfig) {
	mode := "Single user (" + cfg.Security.LocalUserID + ")"
	if cfg.Security.RequireAuth {
		mode = "Signed-in users"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           RPM Monitor Server                              ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Backend:    %-45s║\n", cfg.Persistence.Backend)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.Storage.DataDirectory)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
