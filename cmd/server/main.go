package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rpm-monitor",
	Short: "RPM monitor dashboard backend",
	Long: `Backend of the dryer section RPM monitor: derives component RPMs from the
transmission parameters, keeps per-user marker overlays on the technical
drawing, and persists each user's dashboard state.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to the XML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(catalogCmd)
}

// defaultConfigPath places the config next to the executable.
func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "rpm-monitor.config"
	}
	return filepath.Join(filepath.Dir(exePath), "rpm-monitor.config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
