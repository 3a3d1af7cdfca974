package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/line?sslmode=disable"

line:
  channel_access_token: "file-token"
  base_url: "https://api.line.test"
  timeout_seconds: 45

delivery:
  multicast_chunk_size: 200
  personalize_threshold: 20
  pacing_delay_ms: 250

scheduler:
  queue: "campaigns"
  visibility_timeout_seconds: 120

segmentation:
  purchase_statuses: ["completed"]

logging:
  level: debug
  redact: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/line?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "file-token", cfg.LINE.ChannelAccessToken)
	assert.Equal(t, "https://api.line.test", cfg.LINE.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.LINE.Timeout())
	assert.Equal(t, 200, cfg.Delivery.MulticastChunkSize)
	assert.Equal(t, 20, cfg.Delivery.PersonalizeThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Delivery.PacingDelay())
	assert.Equal(t, "campaigns", cfg.Scheduler.Queue)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.VisibilityTimeout())
	assert.Equal(t, []string{"completed"}, cfg.Segmentation.PurchaseStatuses)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.RedactEnabled())
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
line:
  channel_access_token: "test-token"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://api.line.me", cfg.LINE.BaseURL)
	assert.Equal(t, 30, cfg.LINE.TimeoutSeconds)
	assert.Equal(t, 500, cfg.Delivery.MulticastChunkSize)
	assert.Equal(t, 10, cfg.Delivery.PersonalizeThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Delivery.PacingDelay())
	assert.Equal(t, "line-campaigns", cfg.Scheduler.Queue)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.PollInterval())
	assert.Equal(t, "@every 1m", cfg.Scheduler.RecoverySpec)
	assert.Equal(t, SweepLockRedis, cfg.Scheduler.SweepLock)
	assert.Equal(t, []string{"completed", "shipped", "delivered"}, cfg.Segmentation.PurchaseStatuses)
	assert.True(t, cfg.Logging.RedactEnabled())
}

func TestLoadChunkSizeCapped(t *testing.T) {
	path := writeConfig(t, `
delivery:
  multicast_chunk_size: 1000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Delivery.MulticastChunkSize)
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, `
line:
  channel_access_token: "file-token"
  base_url: "https://file-url.com"
`)

	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "env-token")
	t.Setenv("LINE_BASE_URL", "https://env-url.com")
	t.Setenv("PURCHASE_STATUSES", "completed, shipped")
	t.Setenv("SCHEDULER_SWEEP_LOCK", "postgres")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.LINE.ChannelAccessToken)
	assert.Equal(t, "https://env-url.com", cfg.LINE.BaseURL)
	assert.Equal(t, []string{"completed", "shipped"}, cfg.Segmentation.PurchaseStatuses)
	assert.Equal(t, SweepLockPostgres, cfg.Scheduler.SweepLock)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr())
}
