package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("SLH_CONFIG_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultAPIBase, cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, "file", cfg.Storage.Driver)
	require.Equal(t, "light", cfg.Theme)
	require.Equal(t, filepath.Join(Dir(), "session.json"), cfg.SessionPath())
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLH_CONFIG_DIR", dir)

	yml := `
api:
  base_url: https://api.example.com
identity:
  api_key: key-from-file
storage:
  driver: sqlite
theme: dark
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o600))

	t.Setenv("SLH_API_BASE", "https://staging.example.com/api")
	t.Setenv("SLH_GOOGLE_CLIENT_ID", "client-1")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://staging.example.com/api", cfg.API.BaseURL)
	require.Equal(t, "key-from-file", cfg.Identity.APIKey)
	require.Equal(t, "client-1", cfg.OAuth.Google.ClientID)
	require.Equal(t, "https://oauth2.googleapis.com/token", cfg.OAuth.Google.TokenURL)
	require.Equal(t, "dark", cfg.Theme)
	require.Equal(t, filepath.Join(dir, "session.db"), cfg.SessionPath())
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SLH_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("api: [unterminated"), 0o600))

	_, err := Load()
	require.ErrorContains(t, err, "parsing config")
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("SLH_CONFIG_DIR", t.TempDir())
	t.Setenv("SLH_API_TIMEOUT", "soon")

	_, err := Load()
	require.ErrorContains(t, err, "parsing environment")
}

func TestSaveThenLoad(t *testing.T) {
	t.Setenv("SLH_CONFIG_DIR", filepath.Join(t.TempDir(), "nested"))

	cfg := Default()
	cfg.Theme = "purple"
	cfg.Storage.Path = "/tmp/custom.json"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, "purple", got.Theme)
	require.Equal(t, "/tmp/custom.json", got.SessionPath())
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	t.Setenv("SLH_CONFIG_DIR", t.TempDir())
	t.Setenv("SLH_API_BASE", "https://staging.example.com/api")

	cfg, err := LoadFile()
	require.NoError(t, err)
	require.Equal(t, DefaultAPIBase, cfg.API.BaseURL)

	cfg.Theme = "blue"
	require.NoError(t, Save(cfg))
	data, err := os.ReadFile(FilePath())
	require.NoError(t, err)
	require.NotContains(t, string(data), "staging")
}
