package mqtt

import (
	"encoding/json"
	"strings"
)

// Availability payloads are literal strings, not JSON, so dumb consumers
// (and broker LWT handling) can match them byte for byte.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"

	// Binary sensor payloads follow the Home Assistant default contract.
	PayloadLowBatteryOn  = "ON"
	PayloadLowBatteryOff = "OFF"
)

// TelemetryTopic returns the topic one device's readings are published on.
func TelemetryTopic(prefix, device string) string {
	return prefix + "/" + device
}

// AvailabilityTopic returns the topic a device's online/offline state is
// published on.
func AvailabilityTopic(prefix, device string) string {
	return TelemetryTopic(prefix, device) + "/availability"
}

// LowBatteryTopic returns the topic the derived low-battery indicator is
// published on.
func LowBatteryTopic(prefix, device string) string {
	return TelemetryTopic(prefix, device) + "/low_battery"
}

// GatewayAvailabilityTopic returns the gateway's own liveness topic, which
// doubles as the broker LWT topic.
func GatewayAvailabilityTopic(prefix string) string {
	return prefix + "/bridge/availability"
}

// TelemetryPayload serializes readings as the JSON telemetry payload.
// Key order in the output is stable (encoding/json sorts map keys).
func TelemetryPayload(readings map[string]float64) ([]byte, error) {
	return json.Marshal(readings)
}

// SanitizeID lowercases s and replaces characters that are unsafe in
// topic segments and discovery unique ids (colons in MAC addresses,
// spaces) with underscores.
func SanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
