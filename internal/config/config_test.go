package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  allowed_origins: ["example.com"]
postgres:
  host: db
  user: tourney
  password: secret
  database: tourney
redis:
  addr: cache:6379
event:
  teardown_delay: 90s
  timezone: America/Chicago
`), 0o600))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "override:6379")
	t.Setenv("SNAPSHOT_INTERVAL", "1m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "postgres://tourney:secret@db:5432/tourney", cfg.Postgres.ConnString())
	assert.Equal(t, "override:6379", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Event.TeardownDelay)
	assert.Equal(t, time.Minute, cfg.Event.SnapshotInterval)
	assert.Equal(t, 24*time.Hour, cfg.Event.ReminderLead)

	loc, err := cfg.Event.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("TELEGRAM_CHAT_ID", "-1001234")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Postgres.ConnString())
	assert.Equal(t, int64(-1001234), cfg.Telegram.ChatID)
	assert.Equal(t, 5*time.Minute, cfg.Event.SnapshotInterval)
	assert.Equal(t, 2*time.Minute, cfg.Event.TeardownDelay)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")
	t.Setenv("REDIS_DB", "zero")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadRequiresPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_HOST", "")
	_, err := Load("")
	assert.Error(t, err)
}
