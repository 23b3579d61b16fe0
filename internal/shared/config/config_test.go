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
	t.Setenv("CONFIG_DIR", t.TempDir()) // no files, pure defaults

	cfg := Load()
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "pawfect_db", cfg.Database.Database)
	assert.Equal(t, 3002, cfg.Service.HTTPPort)
	assert.Equal(t, "/ws", cfg.Service.WSPath)
	assert.Equal(t, 10*time.Minute, cfg.Dispatch.StaleAfter)
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("db.yaml", "host: db.internal\nport: 6543\nuser: svc\n")
	write("dispatch.yaml", "# staleness window\nstale_minutes: 3\n")
	t.Setenv("CONFIG_DIR", dir)

	cfg := Load()
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "svc", cfg.Database.User)
	assert.Equal(t, 3*time.Minute, cfg.Dispatch.StaleAfter)
	// Untouched keys keep defaults.
	assert.Equal(t, "pawfect_db", cfg.Database.Database)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.yaml"), []byte("host: from-file\n"), 0o644))
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("DB_HOST", "from-env")
	t.Setenv("DISPATCH_STALE_MINUTES", "7")

	cfg := Load()
	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 7*time.Minute, cfg.Dispatch.StaleAfter)
}

func TestDSNAndAMQPURL(t *testing.T) {
	db := DBConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=d sslmode=disable", db.DSN())

	mq := MQConfig{Host: "mq", Port: 5672, User: "guest", Password: "guest", VHost: "/"}
	assert.Equal(t, "amqp://guest:guest@mq:5672/", mq.AMQPURL())
}
