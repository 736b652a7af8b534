package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// mockSensor tracks the simulated state of one device.
type mockSensor struct {
	profile     string
	flaky       bool
	nextFlipAt  time.Time
	unreachable bool
	battery     float64
}

// StartMockSensorServer runs a fake sensor HTTP service.
//
// Each registered address serves GET /devices/<address> with randomized
// readings. Flaky devices periodically flip between reachable and
// unreachable (returning 503) every 30-90 seconds, which exercises the
// retry and availability machinery. Call this in a goroutine before
// creating the bridge.
func StartMockSensorServer(addr string, sensors map[string]string) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Str("component", "mock").Logger()

	var (
		states = make(map[string]*mockSensor)
		mu     sync.Mutex
	)
	for address, profile := range sensors {
		states[address] = &mockSensor{
			profile:    profile,
			flaky:      profile == "thermometer",
			nextFlipAt: time.Now().Add(time.Duration(30+rand.Intn(61)) * time.Second),
			battery:    100,
		}
	}

	http.HandleFunc("/devices/", func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Path[len("/devices/"):]

		mu.Lock()
		sensor, exists := states[address]
		if !exists {
			mu.Unlock()
			http.NotFound(w, r)
			return
		}

		// flaky devices toggle reachability on a schedule
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

		// battery drains slowly so the low-battery path eventually fires
		sensor.battery -= 0.1
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

		// simulate BLE-ish read latency
		time.Sleep(time.Duration(50+rand.Intn(200)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(readings); err != nil {
			logger.Error().Err(err).Msg("failed to write response")
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("mock server error")
	}
}
