package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv("ITSDB_PROFILE", "")
	t.Setenv("ITSDB_CATALOG", "")
	t.Setenv("ITSDB_BUFFER_SIZE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_File(t *testing.T) {
	t.Setenv("ITSDB_PROFILE", "")
	t.Setenv("ITSDB_CATALOG", "")
	t.Setenv("ITSDB_BUFFER_SIZE", "")

	path := filepath.Join(t.TempDir(), "itsdb.yaml")
	data := "profile_dir: /data/mrs\nencoding: latin1\ngzip: true\nbuffer_size: 50\ncatalog_path: /tmp/cat.db\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		ProfileDir:  "/data/mrs",
		Encoding:    "latin1",
		Gzip:        true,
		BufferSize:  50,
		CatalogPath: "/tmp/cat.db",
		LogLevel:    "debug",
	}, cfg)

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ITSDB_PROFILE", "/env/profile")
	t.Setenv("ITSDB_CATALOG", "/env/catalog.db")
	t.Setenv("ITSDB_BUFFER_SIZE", "7")

	path := filepath.Join(t.TempDir(), "itsdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profile_dir: /file/profile\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/profile", cfg.ProfileDir)
	assert.Equal(t, "/env/catalog.db", cfg.CatalogPath)
	assert.Equal(t, 7, cfg.BufferSize)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ITSDB_PROFILE", "")
	t.Setenv("ITSDB_CATALOG", "")
	t.Setenv("ITSDB_BUFFER_SIZE", "")
	dir := t.TempDir()

	tests := []struct {
		name string
		data string
	}{
		{"syntax", "profile_dir: [unclosed\n"},
		{"negative buffer", "buffer_size: -1\n"},
		{"log level", "log_level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	t.Setenv("ITSDB_BUFFER_SIZE", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "ITSDB_BUFFER_SIZE")
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("ITSDB_PROFILE", "")
	t.Setenv("ITSDB_CATALOG", "")
	t.Setenv("ITSDB_BUFFER_SIZE", "")

	path := filepath.Join(t.TempDir(), "sub", "itsdb.yaml")
	cfg := DefaultConfig()
	cfg.ProfileDir = "/p"
	cfg.Gzip = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
