// Package config loads bridge configuration: viper for the application
// config (file, env, defaults) and a devices.yaml for per-device
// overrides written by the discover command.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed application configuration.
type Config struct {
	Username string
	Password string

	MQTT struct {
		Broker   string
		Username string
		Password string
		ClientID string
	}

	PollInterval time.Duration
	DisablePush  bool

	DBPath      string
	DevicesFile string
	ListenAddr  string
	LogLevel    string
}

// Load reads configuration from the given directory (config.yaml), the
// environment (DREO_ prefix, dots replaced by underscores), and built-in
// defaults, in ascending precedence of defaults < file < env.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("poll.interval", 60)
	v.SetDefault("push.disabled", false)
	v.SetDefault("db.path", "./data/dreoverse.db")
	v.SetDefault("devices.file", "./devices.yaml")
	v.SetDefault("listen.addr", ":9090")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("dreo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file is fine; env and defaults carry the rest.
	}

	cfg := &Config{
		Username:     v.GetString("username"),
		Password:     v.GetString("password"),
		PollInterval: time.Duration(v.GetInt("poll.interval")) * time.Second,
		DisablePush:  v.GetBool("push.disabled"),
		DBPath:       v.GetString("db.path"),
		DevicesFile:  v.GetString("devices.file"),
		ListenAddr:   v.GetString("listen.addr"),
		LogLevel:     v.GetString("log.level"),
	}
	cfg.MQTT.Broker = v.GetString("mqtt.broker")
	cfg.MQTT.Username = v.GetString("mqtt.username")
	cfg.MQTT.Password = v.GetString("mqtt.password")
	cfg.MQTT.ClientID = v.GetString("mqtt.client_id")

	if cfg.PollInterval < 15*time.Second {
		return nil, fmt.Errorf("poll interval %s below the 15s minimum the cloud tolerates", cfg.PollInterval)
	}
	return cfg, nil
}

// Validate checks the fields required to run the bridge.
func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required (DREO_USERNAME / DREO_PASSWORD or config.yaml)")
	}
	return nil
}
