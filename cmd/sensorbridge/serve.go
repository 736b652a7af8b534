package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jpalmerr/sensorbridge"
	"github.com/jpalmerr/sensorbridge/config"
	"github.com/jpalmerr/sensorbridge/internal/mqtt"
	"github.com/jpalmerr/sensorbridge/reader/httpjson"
)

const (
	shutdownTimeout    = 10 * time.Second
	mqttConnectTimeout = 30 * time.Second
)

// newLogger builds the CLI logger from config. Console output goes to
// stderr; when a log file is configured it is added as a rotated sink.
func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	var out io.Writer = console
	if cfg.File != "" {
		out = zerolog.MultiLevelWriter(console, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// serveCmd starts the sensorbridge gateway.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bridge",
	Long: `Start the sensorbridge gateway.

The bridge will:
  - Load configuration from the specified YAML file
  - Connect to the MQTT broker and publish discovery configs (if enabled)
  - Poll all configured devices on every cycle
  - Publish telemetry and availability to the broker
  - Serve the status API on the configured port

The bridge runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  sensorbridge serve -c config.yaml
  sensorbridge serve --config /etc/sensorbridge/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("env-file", "", "path to .env file with credentials")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	// load the env file before config parsing so ${VAR} expansion sees it
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	logger.Info().
		Int("devices", len(cfg.Devices)).
		Str("poll_interval", cfg.PollInterval.Duration().String()).
		Str("topic_prefix", cfg.MQTT.TopicPrefix).
		Msg("config loaded")

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build bridge options: %w", err)
	}

	opts = append(opts,
		sensorbridge.WithReader(httpjson.New(cfg.Reader.BaseURL)),
		sensorbridge.WithLogger(logger),
	)

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewPublisher(mqtt.Config{
			BrokerURL:      cfg.MQTT.Broker,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			QoS:            byte(cfg.MQTT.QoS),
			WillTopic:      mqtt.GatewayAvailabilityTopic(cfg.MQTT.TopicPrefix),
			ConnectTimeout: mqttConnectTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to broker: %w", err)
		}
		defer publisher.Close()

		opts = append(opts, sensorbridge.WithPublisher(publisher))
	} else {
		logger.Warn().Msg("no broker configured, readings will not be published")
	}

	br, err := sensorbridge.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start the bridge - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- br.Start(ctx)
	}()

	// wait for the bridge to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("bridge error: %w", err)
		}
		logger.Info().Msg("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("bridge error: %w", err)
			}
			logger.Info().Msg("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn().
				Str("timeout", shutdownTimeout.String()).
				Msg("shutdown timed out, forcing exit")
			return nil
		}
	}
}
