package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo_service/internal/config"
)

const baseConfig = `
env: "dev"
postgres:
  user: "todo"
  password: "secret"
  dbname: "todo"
tokens:
  secret: "signing-secret"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "HS256", cfg.Tokens.Algorithm)
	assert.Equal(t, 30*time.Minute, cfg.Tokens.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Tokens.RefreshTokenTTL)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.RabbitMQ.URL)
	assert.Empty(t, cfg.Mail.Host)
	assert.Equal(t, 587, cfg.Mail.Port)
	assert.Empty(t, cfg.HTTPServer.CORSOrigins)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL", "15m")

	cfg, err := config.Load(writeConfig(t, baseConfig))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Tokens.AccessTokenTTL)
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Run("From file", func(t *testing.T) {
		body := baseConfig + "http_server:\n  cors_origins:\n    - \"http://localhost:3000\"\n    - \"https://todo.example.com\"\n"

		cfg, err := config.Load(writeConfig(t, body))
		require.NoError(t, err)

		assert.Equal(t, []string{"http://localhost:3000", "https://todo.example.com"}, cfg.HTTPServer.CORSOrigins)
	})

	t.Run("From env", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", "http://a.example.com,http://b.example.com")

		cfg, err := config.Load(writeConfig(t, baseConfig))
		require.NoError(t, err)

		assert.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.HTTPServer.CORSOrigins)
	})
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{
			name: "Unsupported algorithm",
			body: baseConfig + "  algorithm: \"RS256\"\n",
		},
		{
			name: "Negative ttl",
			body: baseConfig + "  refresh_token_ttl: -1h\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file does not exist")

	assert.Panics(t, func() {
		config.MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	})
}
