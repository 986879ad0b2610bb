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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 60*time.Second, cfg.Network.PongWait)
	assert.Equal(t, 25*time.Second, cfg.Network.PingPeriod)
	assert.Equal(t, 64, cfg.Network.SendQueue)
	assert.Equal(t, 4, cfg.Sessions.DefaultMaxPlayers)
	assert.Zero(t, cfg.Sessions.IdleTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Network.AllowedOrigins)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NEXUS_ADDR", ":9000")
	t.Setenv("NEXUS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("NEXUS_SESSION_IDLE_TTL", "30m")
	t.Setenv("NEXUS_LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Network.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.IdleTTL)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"unparseable", "NEXUS_SEND_QUEUE", "lots", "parse env"},
		{"ping after pong", "NEXUS_PING_PERIOD", "2m", "ping period"},
		{"empty queue", "NEXUS_SEND_QUEUE", "0", "send queue"},
		{"log format", "NEXUS_LOG_FORMAT", "xml", "log format"},
		{"capacity", "NEXUS_DEFAULT_MAX_PLAYERS", "-2", "max players"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestInitConfigLoadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NEXUS_TEST_INIT_ADDR=:7777\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("NEXUS_TEST_INIT_ADDR") })

	require.NoError(t, InitConfig(path))
	assert.Equal(t, ":7777", os.Getenv("NEXUS_TEST_INIT_ADDR"))
}

func TestInitConfigMissingFile(t *testing.T) {
	assert.NoError(t, InitConfig(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, InitConfig(""))
}
