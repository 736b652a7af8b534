package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicLayout(t *testing.T) {
	assert.Equal(t, "sensorbridge/balcony_flower", TelemetryTopic("sensorbridge", "balcony_flower"))
	assert.Equal(t, "sensorbridge/balcony_flower/availability", AvailabilityTopic("sensorbridge", "balcony_flower"))
	assert.Equal(t, "sensorbridge/balcony_flower/low_battery", LowBatteryTopic("sensorbridge", "balcony_flower"))
	assert.Equal(t, "sensorbridge/bridge/availability", GatewayAvailabilityTopic("sensorbridge"))
}

func TestTelemetryPayload(t *testing.T) {
	payload, err := TelemetryPayload(map[string]float64{
		"temperature": 21.5,
		"battery":     87,
	})
	require.NoError(t, err)

	// encoding/json sorts map keys, so the payload is deterministic
	assert.JSONEq(t, `{"battery":87,"temperature":21.5}`, string(payload))
	assert.Equal(t, `{"battery":87,"temperature":21.5}`, string(payload))
}

func TestSanitizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mac address", "C4:7C:8D:6A:1B:2C", "c4_7c_8d_6a_1b_2c"},
		{"spaces", "Balcony Flower", "balcony_flower"},
		{"already clean", "bedroom_thermo-2", "bedroom_thermo-2"},
		{"mixed case", "MiFlora", "miflora"},
		{"unicode", "café", "caf_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeID(tt.in))
		})
	}
}

func TestAvailabilityPayloadsAreLiterals(t *testing.T) {
	// consumers match these byte for byte; they must never become JSON
	assert.Equal(t, "online", PayloadOnline)
	assert.Equal(t, "offline", PayloadOffline)
	assert.Equal(t, "ON", PayloadLowBatteryOn)
	assert.Equal(t, "OFF", PayloadLowBatteryOff)
}
