package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jpalmerr/sensorbridge"
	"github.com/jpalmerr/sensorbridge/reader/httpjson"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.InfoLevel).With().Timestamp().Logger()

	// start mock sensor service (see mock_server.go)
	go StartMockSensorServer(":9090", map[string]string{
		"C4:7C:8D:6A:1B:2C": "miflora",
		"C4:7C:8D:6A:1B:2D": "miflora",
		"58:2D:34:3B:44:55": "thermometer",
	})
	time.Sleep(100 * time.Millisecond)

	balcony, err := sensorbridge.NewDevice("balcony_flower", "C4:7C:8D:6A:1B:2C")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create device")
	}

	// the kitchen plant is slower to answer, give it more room
	kitchen, err := sensorbridge.NewDevice("kitchen_basil", "C4:7C:8D:6A:1B:2D",
		sensorbridge.WithDeviceTimeout(15*time.Second),
		sensorbridge.WithDeviceRetries(3),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create device")
	}

	// the mock server makes this one flaky, so it shows offline/online transitions
	bedroom, err := sensorbridge.NewDevice("bedroom_thermo", "58:2D:34:3B:44:55",
		sensorbridge.WithProfile(sensorbridge.ProfileThermometer),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create device")
	}

	br, err := sensorbridge.New(
		sensorbridge.WithDevices(balcony, kitchen, bedroom),
		sensorbridge.WithReader(httpjson.New("http://localhost:9090")),
		sensorbridge.WithPollInterval(10*time.Second),
		sensorbridge.WithOfflineThreshold(2),
		sensorbridge.WithLogger(logger),
		sensorbridge.WithEventCallback(func(ev sensorbridge.Event) {
			if t, ok := ev.(sensorbridge.AvailabilityEvent); ok {
				fmt.Printf(">>> %s is now %s\n", t.Device, t.Status)
			}
		}),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create bridge")
	}

	fmt.Println()
	fmt.Println("  sensorbridge demo")
	fmt.Println()
	fmt.Println("  Devices:")
	fmt.Println("  - balcony_flower (miflora, steady)")
	fmt.Println("  - kitchen_basil  (miflora, 15s timeout)")
	fmt.Println("  - bedroom_thermo (thermometer, flaky)")
	fmt.Println()
	fmt.Println("  Status API: http://localhost:8080/api/devices")
	fmt.Println("  Live events: http://localhost:8080/api/events")
	fmt.Println()
	fmt.Println("  No broker configured; watch the logs and the status API.")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := br.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("bridge error")
	}
}
