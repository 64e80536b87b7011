package bootstrap

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

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, GatewaySimulator, cfg.Payment.Mode)
	assert.InDelta(t, 0.7, cfg.Payment.SuccessRatio, 1e-9)
	assert.False(t, cfg.Nacos.Enabled)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
store:
  driver: mysql
  dsn: root:pw@tcp(localhost:3306)/fulfillment?parseTime=true
  lock_timeout: 2s
kafka:
  brokers: k1:9092,k2:9092
payment:
  mode: http
  url: http://gateway/pay
seed:
  users:
    - id: u1
      name: alice
      points: 50000
  products:
    - id: 1
      name: mug
      price: "10000"
      stock: 5
  coupons:
    - user_id: u1
      name: welcome
      type: FIXED_AMOUNT
      value: "1000"
      valid_for: 720h
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, StoreMySQL, cfg.Store.Driver)
	assert.Equal(t, 2*time.Second, cfg.Store.LockTimeout)
	assert.Equal(t, "k1:9092,k2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "order-export", cfg.Kafka.ExportTopic, "unset keys keep defaults")
	require.Len(t, cfg.Seed.Users, 1)
	assert.Equal(t, int64(50000), cfg.Seed.Users[0].Points)
	require.Len(t, cfg.Seed.Coupons, 1)
	assert.Equal(t, 720*time.Hour, cfg.Seed.Coupons[0].ValidFor)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "app:\n  port: 9090\n")
	t.Setenv("APP_PORT", "7070")
	t.Setenv("NACOS_ENABLED", "true")
	t.Setenv("STORE_LOCK_TIMEOUT", "500ms")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.True(t, cfg.Nacos.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.LockTimeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"mysql without dsn":  "store:\n  driver: mysql\n",
		"unknown driver":     "store:\n  driver: postgres\n",
		"http without url":   "payment:\n  mode: http\n",
		"ratio out of range": "payment:\n  success_ratio: 1.5\n",
		"zero lock timeout":  "store:\n  lock_timeout: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}

	t.Run("bad env bool", func(t *testing.T) {
		t.Setenv("NACOS_ENABLED", "maybe")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
