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
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, 60*time.Second, cfg.PollInterval)
	assert.False(t, cfg.DisablePush)
	assert.Equal(t, "./data/dreoverse.db", cfg.DBPath)
	assert.Equal(t, "./devices.yaml", cfg.DevicesFile)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
username: user@example.com
password: secret
mqtt:
  broker: tcp://broker.local:1883
  username: mq
poll:
  interval: 30
push:
  disabled: true
log:
  level: debug
`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", cfg.Username)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "mq", cfg.MQTT.Username)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.True(t, cfg.DisablePush)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("username: from-file\n"), 0644))

	t.Setenv("DREO_USERNAME", "from-env")
	t.Setenv("DREO_MQTT_BROKER", "tcp://env-broker:1883")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Username)
	assert.Equal(t, "tcp://env-broker:1883", cfg.MQTT.Broker)
}

func TestLoad_PollIntervalFloor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("poll:\n  interval: 5\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "15s minimum")
}

func TestValidate_RequiresCredentials(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Username = "u"
	assert.Error(t, cfg.Validate())

	cfg.Password = "p"
	assert.NoError(t, cfg.Validate())
}
