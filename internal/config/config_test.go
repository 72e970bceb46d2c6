package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SPEAKQUEST_ADDR", "SPEAKQUEST_CORS_ORIGINS", "SPEAKQUEST_DB", "SPEAKQUEST_LOG_MODE",
		"SPEAKQUEST_JWT_SECRET", "SPEAKQUEST_REDIS_ADDR", "SPEAKQUEST_LLM_PROVIDER",
		"SPEAKQUEST_BADGES_TRACK_EARNED_AT", "SPEAKQUEST_LLM_TIMEOUT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Badges.TrackEarnedAt)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "speakquest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  cors_origins: ["https://app.example"]
database:
  path: /tmp/sq.db
auth:
  jwt_secret: file-secret-0123456789
badges:
  track_earned_at: false
llm:
  provider: mock
  timeout: 12s
`), 0o600))

	t.Setenv("SPEAKQUEST_ADDR", ":9100")
	t.Setenv("SPEAKQUEST_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/sq.db", cfg.Database.Path)
	assert.False(t, cfg.Badges.TrackEarnedAt)
	assert.Equal(t, 12*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "production", cfg.Log.Mode)
	require.NoError(t, cfg.Validate())

	mc := cfg.ModelConfig()
	assert.Equal(t, "mock", mc.Provider)
	assert.Equal(t, 12*time.Second, mc.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("SPEAKQUEST_BADGES_TRACK_EARNED_AT", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")

	cfg.Auth.JWTSecret = "0123456789abcdef"
	cfg.Log.Mode = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "log.mode")
}
