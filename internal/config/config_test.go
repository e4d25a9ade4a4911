package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8004", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.False(t, cfg.AllowSkip)
	assert.Contains(t, cfg.DBPath, "examdesk.db")
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	isolate(t)
	t.Setenv("EXAMDESK_BASE_URL", "https://exams.example.edu/api/")
	t.Setenv("EXAMDESK_REQUEST_TIMEOUT", "3s")
	t.Setenv("EXAMDESK_ALLOW_SKIP", "true")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "https://exams.example.edu/api", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.AllowSkip)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "examdesk"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "examdesk", "config.yaml"),
		[]byte("base_url: http://10.0.0.5:8004\nlog_level: debug\n"), 0o644))

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8004", cfg.BaseURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	isolate(t)
	t.Setenv("EXAMDESK_BASE_URL", "http://env:8004")

	v := New()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, fs))
	require.NoError(t, fs.Parse([]string{"--base-url", "http://flag:8004"}))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:8004", cfg.BaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	isolate(t)
	t.Setenv("EXAMDESK_BASE_URL", "localhost:8004")
	t.Setenv("EXAMDESK_LOG_LEVEL", "chatty")

	_, err := Load(New())
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 2)
	assert.Equal(t, "base_url", verrs[0].Field)
	assert.Equal(t, "log_level", verrs[1].Field)
	assert.Contains(t, err.Error(), "2 validation errors")
}
