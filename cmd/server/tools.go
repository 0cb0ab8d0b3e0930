package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rpm-monitor/backend/internal/config"
	"github.com/rpm-monitor/backend/internal/export"
	"github.com/rpm-monitor/backend/internal/models"
	"github.com/rpm-monitor/backend/internal/rpm"
	"github.com/rpm-monitor/backend/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportUser string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's derived RPM table as CSV",
	Long: `Reads the saved dashboard state of a user and writes the derived RPM table
in the same CSV layout as the dashboard download.

Examples:
  rpm-monitor export --user alice
  rpm-monitor export --user alice --out report.csv`,
	RunE: runExport,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the component groups of the active catalog",
	RunE:  runCatalog,
}

func init() {
	exportCmd.Flags().StringVarP(&exportUser, "user", "u", "", "user whose state is exported (required)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default RPM_<timestamp>.csv)")
	_ = exportCmd.MarkFlagRequired("user")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Persistence.Backend, err)
	}
	defer st.close()

	doc, err := st.state.Read(ctx, exportUser)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no saved state for user %q", exportUser)
	}
	if err != nil {
		return err
	}

	out := exportOut
	if out == "" {
		out = export.FileName(time.Now())
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	params := doc.CalcParams
	if params == (models.TransmissionParams{}) {
		params = cat.Defaults()
	}
	rows := rpm.Table(cat.Groups(), doc.GroupInputs, params)
	if err := export.WriteCSV(f, params, rows); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), out)
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, g := range cat.Groups() {
		fmt.Fprintf(w, "%s (%s)\n", g.Name, g.ID)
		for _, c := range g.Components {
			fmt.Fprintf(w, "  %-12s %s\n", c.ID, c.Type)
		}
	}
	fmt.Fprintf(w, "%d components\n", cat.Len())
	return nil
}
