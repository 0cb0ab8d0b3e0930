package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rpm-monitor.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config written on first run")

	assert.Equal(t, 8089, cfg.Server.Port)
	assert.Equal(t, BackendDuckDB, cfg.Persistence.Backend)
	assert.Equal(t, time.Second, cfg.Debounce())
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDirectory)
	assert.Equal(t, filepath.Join(dir, "data", "state.duckdb"), cfg.Persistence.DuckDBFile)
}

func TestLoadConfig_ReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.config")

	cfg := DefaultConfig()
	cfg.Server.Port = 9000
	cfg.Persistence.DebounceMillis = 250
	cfg.Storage.DataDirectory = "/srv/rpm"
	require.NoError(t, cfg.Save(path))

	t.Setenv("STATE_BACKEND", "SQLite")
	t.Setenv("PORT", "7000")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7000, loaded.Server.Port)
	assert.Equal(t, BackendSQLite, loaded.Persistence.Backend)
	assert.Equal(t, 250*time.Millisecond, loaded.Debounce())
	assert.Equal(t, "/srv/rpm", loaded.Storage.DataDirectory)
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.config")
	cfg := DefaultConfig()
	cfg.Persistence.Backend = "mongo"
	require.NoError(t, cfg.Save(path))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"512", 512, false},
		{"4K", 4 << 10, false},
		{"50M", 50 << 20, false},
		{"50MB", 50 << 20, false},
		{"2g", 2 << 30, false},
		{"lots", 0, true},
		{"-1M", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAllowedExtensions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.AllowedFileTypes = " .PNG, pdf ,,.webp"
	assert.Equal(t, []string{".png", ".pdf", ".webp"}, cfg.AllowedExtensions())
}
