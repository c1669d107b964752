package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeOffline, cfg.Mode)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.MailDelay)
	assert.Equal(t, "sum", cfg.GradingStrategy)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkmark.toml")
	err := os.WriteFile(path, []byte(`
[server]
mode = "online"
addr = ":9999"

[database]
driver = "postgres"
dsn = "postgres://db/checkmark"

[mail]
delay = "5m"

[grading]
strategy = "proportion"

[cors]
online = ["https://a.example", "https://b.example"]
`), 0o644)
	require.NoError(t, err)

	t.Setenv("HTTP_ADDR", ":7000")
	t.Setenv("CRON_BUDGET", "120")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeOnline, cfg.Mode)
	assert.Equal(t, ":7000", cfg.HTTPAddr, "env wins over file")
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://db/checkmark", cfg.DBDSN)
	assert.Equal(t, 5*time.Minute, cfg.MailDelay)
	assert.Equal(t, 2*time.Minute, cfg.CronBudget)
	assert.Equal(t, "proportion", cfg.GradingStrategy)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("MODE", "sideways")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("MODE", "")
	t.Setenv("MAIL_DELAY", "soon")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("MAIL_DELAY", "")
	t.Setenv("GRADING_STRATEGY", "median")
	_, err = Load("")
	assert.ErrorContains(t, err, "grading strategy")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestFromEnvReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SITE_ID=from-dotenv\nHTTP_ADDR=:7000\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("CONFIG_FILE", "")
	// already set variables win over the file
	t.Setenv("HTTP_ADDR", ":8181")
	t.Setenv("SITE_ID", "")
	require.NoError(t, os.Unsetenv("SITE_ID"))

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SiteID)
	assert.Equal(t, ":8181", cfg.HTTPAddr)

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	_, err = FromEnv()
	assert.NoError(t, err)
}
