package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/chat"
security:
  jwt:
    publicKeyPath: "/keys/pub.pem"
`

func clearEnv(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "GRPC_ADDR", "POSTGRES_DSN", "REDIS_ADDR", "JWT_PUBLIC_KEY_PATH", "APP_ENV"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "chat-service", cfg.Logging.Service)
	assert.Equal(t, "dev", cfg.Logging.Env)
	assert.Equal(t, 4000, cfg.Chat.MaxMessageLength)
	assert.Equal(t, 64, cfg.Chat.SendQueueSize)
	assert.Equal(t, 15*time.Second, cfg.Chat.PingInterval)
	assert.Equal(t, 30*time.Second, cfg.Security.JWT.ClockSkew)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":18080")
	t.Setenv("POSTGRES_DSN", "postgres://override/chat")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadFile(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, ":18080", cfg.HTTP.Addr)
	assert.Equal(t, "postgres://override/chat", cfg.Postgres.DSN)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, ":9090", cfg.GRPC.Addr)

	t.Setenv("APP_ENV", "production")
	cfg, err = LoadFile(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Logging.Env)
}

func TestLoadFile_Durations(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFile(writeConfig(t, minimal+`
chat:
  pingInterval: 3s
  allowedOrigins: ["https://amarket.example"]
`))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Chat.PingInterval)
	assert.Equal(t, []string{"https://amarket.example"}, cfg.Chat.AllowedOrigins)
}

func TestLoadFile_Invalid(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(writeConfig(t, `
http:
  addr: ":8080"
`))
	assert.Error(t, err)

	_, err = LoadFile(writeConfig(t, minimal+`
logging:
  backend: logrus
`))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(".env", []byte("CHAT_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CHAT_TEST_FROM_DOTENV") })

	loaded := LoadDotEnv()
	assert.Equal(t, []string{".env"}, loaded)
	assert.Equal(t, "yes", os.Getenv("CHAT_TEST_FROM_DOTENV"))
}
