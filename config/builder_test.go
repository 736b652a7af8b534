package config

import (
	"context"
	"testing"
	"time"

	"github.com/jpalmerr/sensorbridge"
)

func TestBuildDevices(t *testing.T) {
	cfg, err := Parse([]byte(`
reader:
  base_url: http://localhost:9090

devices:
  - name: balcony_flower
    address: C4:7C:8D:6A:1B:2C
    profile: miflora
    timeout: 20s
    retries: 3
  - name: bedroom_thermo
    address: 58:2D:34:3B:44:55
    profile: thermometer
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	devices, err := BuildDevices(cfg)
	if err != nil {
		t.Fatalf("BuildDevices() error: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}

	balcony := devices[0]
	if balcony.Name() != "balcony_flower" {
		t.Errorf("Name() = %q", balcony.Name())
	}
	if balcony.Timeout() != 20*time.Second {
		t.Errorf("Timeout() = %v, want 20s", balcony.Timeout())
	}
	if balcony.Retries() != 3 {
		t.Errorf("Retries() = %d, want 3", balcony.Retries())
	}
	if balcony.Profile().Model != sensorbridge.ProfileMiFlora.Model {
		t.Errorf("Profile() = %q", balcony.Profile().Model)
	}

	thermo := devices[1]
	if thermo.Profile().Model != sensorbridge.ProfileThermometer.Model {
		t.Errorf("Profile() = %q, want thermometer", thermo.Profile().Model)
	}
	// no per-device override, inherits the bridge default
	if thermo.Retries() != -1 {
		t.Errorf("Retries() = %d, want -1", thermo.Retries())
	}
}

func TestBuildDevices_DefaultProfile(t *testing.T) {
	cfg, err := Parse([]byte(`
reader:
  base_url: http://localhost:9090

devices:
  - name: mystery
    address: AA:BB:CC:DD:EE:FF
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	devices, err := BuildDevices(cfg)
	if err != nil {
		t.Fatalf("BuildDevices() error: %v", err)
	}
	if devices[0].Profile().Model != sensorbridge.ProfileMiFlora.Model {
		t.Errorf("empty profile should default to miflora, got %q", devices[0].Profile().Model)
	}
}

func TestBuildOptions_ProducesWorkingBridge(t *testing.T) {
	cfg, err := Parse([]byte(`
mqtt:
  topic_prefix: garden

poll_interval: 45s
offline_threshold: 4
retries: 1
low_battery_threshold: 20

server:
  enabled: false

reader:
  base_url: http://localhost:9090

devices:
  - name: balcony_flower
    address: C4:7C:8D:6A:1B:2C
`))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error: %v", err)
	}

	opts = append(opts, sensorbridge.WithReader(
		sensorbridge.ReadFunc(func(_ context.Context, _ sensorbridge.Device) (sensorbridge.Readings, error) {
			return sensorbridge.Readings{"temperature": 20}, nil
		}),
	))

	br, err := sensorbridge.New(opts...)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if br.PollInterval() != 45*time.Second {
		t.Errorf("PollInterval() = %v, want 45s", br.PollInterval())
	}
	if br.Port() != 0 {
		t.Errorf("Port() = %d, want 0 (server disabled)", br.Port())
	}
	if len(br.Devices()) != 1 {
		t.Errorf("Devices() = %d, want 1", len(br.Devices()))
	}
}
