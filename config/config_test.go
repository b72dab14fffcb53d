package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
oauth:
  token_url: https://bank.example.com/oauth/token
  username: client-id
  password: client-secret
  api_key: key-123
signing:
  static_key: shared-static-key
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults over a minimal file", func(t *testing.T) {
		cfg, err := Load(writeConfigFile(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "/webhook", cfg.Server.WebhookPath)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "grant_type=client_credentials", cfg.OAuth.GrantBody)
		assert.Equal(t, 5*time.Minute, cfg.Scheduler.RefreshBuffer)
		assert.Equal(t, time.Minute, cfg.Scheduler.MinScheduleTime)
		assert.Equal(t, 3, cfg.Delivery.MaxAttempts)
		assert.Equal(t, time.Second, cfg.Delivery.InitialBackoff)
		assert.Equal(t, "destinations.yaml", cfg.DestinationsFile)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		cfg, err := Load(writeConfigFile(t, minimalConfig+`
server:
  port: 9090
  webhook_path: /hooks/whatsapp
scheduler:
  refresh_buffer: 10m
delivery:
  max_attempts: 5
  attempt_timeout: 15s
`))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "/hooks/whatsapp", cfg.Server.WebhookPath)
		assert.Equal(t, 10*time.Minute, cfg.Scheduler.RefreshBuffer)
		assert.Equal(t, 5, cfg.Delivery.MaxAttempts)
		assert.Equal(t, 15*time.Second, cfg.Delivery.AttemptTimeout)
	})

	t.Run("environment variables override the file", func(t *testing.T) {
		t.Setenv("GATEWAY_SERVER_PORT", "7070")
		t.Setenv("GATEWAY_SIGNING_STATIC_KEY", "from-env")

		cfg, err := Load(writeConfigFile(t, minimalConfig))
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "from-env", cfg.Signing.StaticKey)
	})

	t.Run("fails when the file is missing", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("fails validation without oauth credentials", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, `
oauth:
  token_url: https://bank.example.com/oauth/token
signing:
  static_key: shared-static-key
`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oauth credentials")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{WebhookPath: "/webhook"},
			OAuth: OAuthConfig{
				TokenURL: "https://bank.example.com/oauth/token",
				Username: "client-id",
				Password: "client-secret",
			},
			Signing:  SigningConfig{StaticKey: "shared"},
			Delivery: DeliveryConfig{MaxAttempts: 3},
		}
	}

	t.Run("accepts a complete config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects webhook path without leading slash", func(t *testing.T) {
		cfg := valid()
		cfg.Server.WebhookPath = "webhook"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects empty token URL", func(t *testing.T) {
		cfg := valid()
		cfg.OAuth.TokenURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects empty static key", func(t *testing.T) {
		cfg := valid()
		cfg.Signing.StaticKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects zero max attempts", func(t *testing.T) {
		cfg := valid()
		cfg.Delivery.MaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects negative scheduler durations", func(t *testing.T) {
		cfg := valid()
		cfg.Scheduler.RefreshBuffer = -time.Minute
		assert.Error(t, cfg.Validate())
	})
}
