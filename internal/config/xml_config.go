// Package config provides XML-based configuration management for air-gapped deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Persistence backends.
const (
	BackendDuckDB = "duckdb"
	BackendSQLite = "sqlite"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"RPMMonitor"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Persistence of per-user state
	Persistence PersistenceConfig `xml:"Persistence"`

	// Processing configuration
	Processing ProcessingConfig `xml:"Processing"`

	// Security configuration
	Security SecurityConfig `xml:"Security"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	AssetsDirectory  string `xml:"AssetsDirectory"`
	StagingDirectory string `xml:"StagingDirectory"`
	CatalogFile      string `xml:"CatalogFile"`
	MaxDrawingSize   string `xml:"MaxDrawingSize"`
}

// PersistenceConfig selects where user state is kept.
// With the sqlite backend drawings are embedded in the local key-value store.
type PersistenceConfig struct {
	Backend           string `xml:"Backend"`
	DuckDBFile        string `xml:"DuckDBFile"`
	SQLiteFile        string `xml:"SQLiteFile"`
	DebounceMillis    int    `xml:"DebounceMillis"`
	DuckDBThreads     int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit string `xml:"DuckDBMemoryLimit"`
}

// ProcessingConfig contains session and import job settings
type ProcessingConfig struct {
	SessionTimeoutMinutes  int `xml:"SessionTimeoutMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
	JobRetentionMinutes    int `xml:"JobRetentionMinutes"`
}

// SecurityConfig contains security settings
type SecurityConfig struct {
	RequireAuth      bool   `xml:"RequireAuthentication"`
	LocalUserID      string `xml:"LocalUserID"`
	AllowedFileTypes string `xml:"AllowedFileTypes"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel                string `xml:"LogLevel"`
	LogFile                 string `xml:"LogFile"`
	EnableRequestLogging    bool   `xml:"EnableRequestLogging"`
	WebSocketMaxMessageSize int    `xml:"WebSocketMaxMessageSizeKB"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8089,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "64M",
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			AssetsDirectory:  "./data/assets",
			StagingDirectory: "./data/staging",
			MaxDrawingSize:   "50M",
		},
		Persistence: PersistenceConfig{
			Backend:           BackendDuckDB,
			DuckDBFile:        "./data/state.duckdb",
			SQLiteFile:        "./data/local.db",
			DebounceMillis:    1000,
			DuckDBThreads:     2,
			DuckDBMemoryLimit: "256MB",
		},
		Processing: ProcessingConfig{
			SessionTimeoutMinutes:  30,
			CleanupIntervalMinutes: 5,
			JobRetentionMinutes:    60,
		},
		Security: SecurityConfig{
			RequireAuth:      false,
			LocalUserID:      "local",
			AllowedFileTypes: ".png,.jpg,.jpeg,.gif,.bmp,.tif,.tiff,.webp,.pdf",
		},
		Advanced: AdvancedConfig{
			LogLevel:                "info",
			LogFile:                 "./data/rpm-monitor.log",
			EnableRequestLogging:    true,
			WebSocketMaxMessageSize: 64,
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- RPM Monitor Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks values that cannot be defaulted silently.
func (c *AppConfig) Validate() error {
	switch c.Persistence.Backend {
	case BackendDuckDB, BackendSQLite:
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	if _, err := ParseSize(c.Storage.MaxDrawingSize); err != nil {
		return fmt.Errorf("MaxDrawingSize: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// STATE_BACKEND override
	if backend := os.Getenv("STATE_BACKEND"); backend != "" {
		c.Persistence.Backend = strings.ToLower(backend)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.AssetsDirectory,
		&c.Storage.StagingDirectory,
		&c.Storage.CatalogFile,
		&c.Persistence.DuckDBFile,
		&c.Persistence.SQLiteFile,
		&c.Advanced.LogFile,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// Debounce returns the persistence quiet interval.
func (c *AppConfig) Debounce() time.Duration {
	return time.Duration(c.Persistence.DebounceMillis) * time.Millisecond
}

// SessionTimeout returns how long an idle session stays in memory.
func (c *AppConfig) SessionTimeout() time.Duration {
	return time.Duration(c.Processing.SessionTimeoutMinutes) * time.Minute
}

// CleanupInterval returns the period of the cleanup loop.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Processing.CleanupIntervalMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Processing.CleanupIntervalMinutes) * time.Minute
}

// JobRetention returns how long finished import jobs are kept.
func (c *AppConfig) JobRetention() time.Duration {
	return time.Duration(c.Processing.JobRetentionMinutes) * time.Minute
}

// MaxDrawingBytes returns the drawing size limit in bytes (0 = unlimited).
func (c *AppConfig) MaxDrawingBytes() int64 {
	n, _ := ParseSize(c.Storage.MaxDrawingSize)
	return n
}

// AllowedExtensions returns the lower-cased drawing extensions.
func (c *AppConfig) AllowedExtensions() []string {
	var exts []string
	for _, e := range strings.Split(c.Security.AllowedFileTypes, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.AssetsDirectory,
		c.Storage.StagingDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ParseSize parses sizes such as "512K", "50M" or "2G". Empty means 0.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "B")

	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "K"):
		mult = 1 << 10
	case strings.HasSuffix(s, "M"):
		mult = 1 << 20
	case strings.HasSuffix(s, "G"):
		mult = 1 << 30
	}
	if mult > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
