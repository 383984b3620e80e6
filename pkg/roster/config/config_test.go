package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDotenv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ROSTER_DB_PATH", "PORT", "JWT_SECRET", "ROSTER_TOKEN_TTL", "ROSTER_DEBUG", "ROSTER_SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "roster.db", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.Debug)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ROSTER_DB_PATH", "/tmp/world.db")
	t.Setenv("PORT", "9090")
	t.Setenv("ROSTER_TOKEN_TTL", "2h")
	t.Setenv("ROSTER_DEBUG", "true")

	cfg, err := Load(noDotenv(t))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/world.db", cfg.DBPath)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.Debug)
}

func TestLoadDotenvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ROSTER_DB_PATH=from-file.db\nJWT_SECRET=file-secret\n"), 0o600))
	t.Setenv("ROSTER_DB_PATH", "from-env.db")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DBPath)
	assert.Equal(t, "file-secret", cfg.JWTSecret)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ROSTER_TOKEN_TTL", "soon")
	_, err := Load(noDotenv(t))
	assert.Error(t, err)

	t.Setenv("ROSTER_TOKEN_TTL", "-1h")
	_, err = Load(noDotenv(t))
	assert.Error(t, err)
}
