package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRANZIO_DATABASE_PATH", filepath.Join(dir, "data", "chat.db"))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ModeServer, cfg.Mode)
	assert.Equal(t, "loopback", cfg.Transport)
	assert.Equal(t, "currentUser", cfg.LocalUserID)
	assert.Equal(t, "default", cfg.DefaultConversationID)
	assert.True(t, cfg.AutoConnect)
	assert.NotNil(t, cfg.Location)

	_, err = os.Stat(filepath.Join(dir, "data"))
	assert.NoError(t, err, "data directory created")
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRANZIO_DATABASE_PATH", filepath.Join(dir, "chat.db"))
	t.Setenv("TRANZIO_TRANSPORT", "nats")
	t.Setenv("TRANZIO_LOOPBACK_ECHO", "true")

	cfg, err := Load([]string{"-mode", "headless", "-transport", "ws", "-tz", "Europe/Berlin"})
	require.NoError(t, err)
	assert.Equal(t, ModeHeadless, cfg.Mode)
	assert.Equal(t, "ws", cfg.Transport)
	assert.True(t, cfg.LoopbackEcho)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Setenv("TRANZIO_DATABASE_PATH", filepath.Join(t.TempDir(), "chat.db"))

	_, err := Load([]string{"-mode", "daemon"})
	assert.Error(t, err)

	_, err = Load([]string{"-tz", "Mars/Olympus"})
	assert.Error(t, err)

	_, err = Load([]string{"-no-such-flag"})
	assert.Error(t, err)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TRANZIO_TEST_BOOL", "no")
	assert.False(t, getEnvBool("TRANZIO_TEST_BOOL", true))
	t.Setenv("TRANZIO_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("TRANZIO_TEST_BOOL", true))
}
