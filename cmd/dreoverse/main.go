package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalpizar15/dreoverse-bridge/internal/bridge"
	"github.com/kalpizar15/dreoverse-bridge/internal/config"
	"github.com/kalpizar15/dreoverse-bridge/internal/logging"
)

var (
	configPath = "."
	mqttBroker = ""
	mqttUser   = ""
	mqttPass   = ""
	logLevel   = ""
	pollSecs   = 0
	devMode    = false

	log *zap.SugaredLogger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dreoverse",
		Short: "Bridge Dreo cloud appliances to Home Assistant over MQTT",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logLevel
			if level == "" {
				level = "info"
			}
			var err error
			log, err = logging.New(level, devMode)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", configPath, "Directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&mqttBroker, "mqtt-broker", mqttBroker, "MQTT broker URL (tcp://host:port)")
	rootCmd.PersistentFlags().StringVar(&mqttUser, "mqtt-user", mqttUser, "MQTT username")
	rootCmd.PersistentFlags().StringVar(&mqttPass, "mqtt-pass", mqttPass, "MQTT password")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&pollSecs, "poll-interval", pollSecs, "Seconds between status polls (min 15)")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", devMode, "Human-readable log output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(discoverCmd())

	if err := rootCmd.Execute(); err != nil {
		if log != nil {
			log.Errorf("fatal: %v", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig merges config.yaml and environment with any explicit flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if mqttBroker != "" {
		cfg.MQTT.Broker = mqttBroker
	}
	if mqttUser != "" {
		cfg.MQTT.Username = mqttUser
	}
	if mqttPass != "" {
		cfg.MQTT.Password = mqttPass
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if pollSecs > 0 {
		if pollSecs < 15 {
			return nil, fmt.Errorf("poll interval %ds below the 15s minimum", pollSecs)
		}
		cfg.PollInterval = time.Duration(pollSecs) * time.Second
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return bridge.Run(ctx, cfg, log)
		},
	}
}

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "List account devices and generate the overrides file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return bridge.Discover(ctx, cfg, log)
		},
	}
}
