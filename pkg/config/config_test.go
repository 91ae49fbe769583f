package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIKey, cfg.APIKey)
	assert.True(t, cfg.UsesDefaultAPIKey())
	assert.Equal(t, 8059, cfg.Port)
	assert.Equal(t, 64, cfg.HubQueueSize)
	assert.Equal(t, 2*time.Second, cfg.HubDeliveryTimeout)
	assert.Equal(t, 100000, cfg.ExportMaxRows)
	assert.Equal(t, 24*time.Hour, cfg.LatestTTL)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.MQTTBroker)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("API_KEY", "s3cret")
	t.Setenv("API_PORT", "9000")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.example, http://b.example ,")
	t.Setenv("HUB_DELIVERY_TIMEOUT", "1500ms")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.APIKey)
	assert.False(t, cfg.UsesDefaultAPIKey())
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 1500*time.Millisecond, cfg.HubDeliveryTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Contains(t, cfg.DSN(), "host=db.internal")
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sensormaestro.yaml")
	content := "api_key: from-file\nexport_max_rows: 500\nmqtt_broker: tcp://localhost:1883\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, 500, cfg.ExportMaxRows)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("HUB_QUEUE_SIZE", "0")

	_, err := Load("")
	assert.ErrorContains(t, err, "hub_queue_size")
}

func TestConfig_DSN(t *testing.T) {
	cfg := &Config{DBHost: "localhost", DBPort: 5432, DBUser: "u", DBPassword: "p", DBName: "n", DBSSLMode: "disable"}
	assert.Equal(t, "host=localhost port=5432 user=u password=p dbname=n sslmode=disable", cfg.DSN())

	cfg.DatabaseURL = "postgres://u:p@localhost/n"
	assert.Equal(t, "postgres://u:p@localhost/n", cfg.DSN())
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Host: "0.0.0.0", Port: 8059}
	assert.Equal(t, "0.0.0.0:8059", cfg.Addr())
}
