// Standalone mock sensor service for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mocksensor
//
// Then in another terminal:
//
//	go run ./cmd/sensorbridge serve -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type sensorState struct {
	profile     string
	flaky       bool
	unreachable bool
	nextFlipAt  time.Time
	battery     float64
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	fmt.Println("Mock sensor service starting on :9090")
	fmt.Println("Flaky devices toggle reachability every 30-90 seconds")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu     sync.Mutex
		states = map[string]*sensorState{
			"C4:7C:8D:6A:1B:2C": {profile: "miflora", battery: 100},
			"C4:7C:8D:6A:1B:2D": {profile: "miflora", battery: 40},
			"58:2D:34:3B:44:55": {
				profile:    "thermometer",
				flaky:      true,
				nextFlipAt: time.Now().Add(time.Duration(30+rand.Intn(61)) * time.Second),
				battery:    85,
			},
		}
	)

	http.HandleFunc("/devices/", func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Path[len("/devices/"):]

		mu.Lock()
		sensor, exists := states[address]
		if !exists {
			mu.Unlock()
			http.NotFound(w, r)
			return
		}

		if sensor.flaky && time.Now().After(sensor.nextFlipAt) {
			sensor.unreachable = !sensor.unreachable
			sensor.nextFlipAt = time.Now().Add(time.Duration(30+rand.Intn(61)) * time.Second)
			logger.Info().Str("address", address).Bool("unreachable", sensor.unreachable).
				Msg("reachability flipped")
		}

		if sensor.unreachable {
			mu.Unlock()
			http.Error(w, "sensor unreachable", http.StatusServiceUnavailable)
			return
		}

		sensor.battery -= 0.05
		if sensor.battery < 0 {
			sensor.battery = 100
		}

		readings := map[string]float64{
			"temperature": 18 + rand.Float64()*8,
			"battery":     sensor.battery,
		}
		switch sensor.profile {
		case "miflora":
			readings["moisture"] = 20 + rand.Float64()*40
			readings["light"] = rand.Float64() * 10000
			readings["conductivity"] = 200 + rand.Float64()*800
		case "thermometer":
			readings["humidity"] = 30 + rand.Float64()*40
		}
		mu.Unlock()

		time.Sleep(time.Duration(50+rand.Intn(200)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(readings)
	})

	if err := http.ListenAndServe(":9090", nil); err != nil {
		logger.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
}
