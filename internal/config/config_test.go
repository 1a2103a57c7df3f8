package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Database.Driver = "postgres"
	cfg.Database.DSN = "host=localhost user=postgres dbname=recon"
	cfg.Reconcile.Schedule = "*/15 * * * *"
	cfg.Reconcile.RunLog = "logs/runs.csv"

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg.Server, got.Server)
	assert.Equal(t, cfg.Database, got.Database)
	assert.Equal(t, cfg.Ingest, got.Ingest)
	assert.Equal(t, cfg.Reconcile, got.Reconcile)
	assert.Equal(t, cfg.Log, got.Log)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, int64(50), cfg.Server.MaxUploadMB)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, "import", cfg.Ingest.InboxDir)
	assert.Empty(t, cfg.Reconcile.Schedule)
	assert.Equal(t, "UTC", cfg.Reconcile.TimeZone)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: mysql\n  dsn: root@tcp(localhost)/recon\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
	assert.Equal(t, ":3000", cfg.Server.Addr)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config")
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "batch_size: 1000")
	assert.Contains(t, contents, "inbox_dir: import")
	assert.NotContains(t, contents, "schedule:")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":               "8080",
		"DATABASE_DRIVER":    "postgres",
		"DATABASE_URL":       "postgres://localhost/recon",
		"LOG_LEVEL":          "debug",
		"RECONCILE_SCHEDULE": "@hourly",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(cfg, lookup))

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/recon", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "@hourly", cfg.Reconcile.Schedule)
}

func TestApplyEnvBadPort(t *testing.T) {
	lookup := func(k string) (string, bool) {
		if k == "PORT" {
			return "eighty", true
		}
		return "", false
	}
	err := applyEnv(Default(), lookup)
	assert.ErrorContains(t, err, "parsing PORT")
}
