package mqtt

import (
	"encoding/json"
	"fmt"
)

// DeviceMeta carries the identity fields discovery payloads need for one
// device.
//
// This is the mqtt-internal mirror of the public device and profile types,
// avoiding a dependency on the root package.
type DeviceMeta struct {
	// Name is the device's display name.
	Name string

	// Address is the device's unique transport address.
	Address string

	// Model is the hardware model name.
	Model string

	// Manufacturer is the hardware vendor name.
	Manufacturer string
}

// Param describes one monitored parameter's discovery metadata.
type Param struct {
	Name        string
	Unit        string
	DeviceClass string
	Icon        string
}

// ConfigMessage is one discovery config payload with its target topic.
// Discovery messages are published retained so consumers that restart
// pick the metadata back up.
type ConfigMessage struct {
	Topic   string
	Payload []byte
}

// deviceBlock is the shared "device" object linking all of one device's
// discovery entries together in the consumer's registry.
type deviceBlock struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Name         string   `json:"name"`
}

// sensorConfig is the discovery payload for one monitored parameter.
type sensorConfig struct {
	UniqueID          string      `json:"unique_id"`
	Name              string      `json:"name"`
	StateTopic        string      `json:"state_topic"`
	AvailabilityTopic string      `json:"availability_topic"`
	ValueTemplate     string      `json:"value_template,omitempty"`
	UnitOfMeasurement string      `json:"unit_of_measurement,omitempty"`
	DeviceClass       string      `json:"device_class,omitempty"`
	Icon              string      `json:"icon,omitempty"`
	Device            deviceBlock `json:"device"`
}

// DiscoveryID derives the stable unique identifier for one device
// parameter from the device address and parameter name.
func DiscoveryID(address, device, param string) string {
	id := SanitizeID(address) + "_" + SanitizeID(device)
	if param != "" {
		id += "_" + SanitizeID(param)
	}
	return id
}

// DiscoveryMessages builds the retained discovery config messages for one
// device: one sensor config per monitored parameter, plus one
// binary_sensor config for the derived low-battery indicator when the
// device reports a battery parameter.
//
// discoveryPrefix is the consumer's discovery root (conventionally
// "homeassistant"); topicPrefix is the gateway's own topic prefix the
// state topics live under.
func DiscoveryMessages(discoveryPrefix, topicPrefix string, meta DeviceMeta, params []Param, batteryParam string) ([]ConfigMessage, error) {
	device := deviceBlock{
		Identifiers:  []string{meta.Address, DiscoveryID(meta.Address, meta.Name, "")},
		Manufacturer: meta.Manufacturer,
		Model:        meta.Model,
		Name:         meta.Name,
	}

	messages := make([]ConfigMessage, 0, len(params)+1)
	hasBattery := false

	for _, p := range params {
		if p.Name == batteryParam {
			hasBattery = true
		}

		cfg := sensorConfig{
			UniqueID:          DiscoveryID(meta.Address, meta.Name, p.Name),
			Name:              meta.Name + " " + p.Name,
			StateTopic:        TelemetryTopic(topicPrefix, meta.Name),
			AvailabilityTopic: AvailabilityTopic(topicPrefix, meta.Name),
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", p.Name),
			UnitOfMeasurement: p.Unit,
			DeviceClass:       p.DeviceClass,
			Icon:              p.Icon,
			Device:            device,
		}

		payload, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal discovery config for %s/%s: %w", meta.Name, p.Name, err)
		}

		messages = append(messages, ConfigMessage{
			Topic: fmt.Sprintf("%s/sensor/%s/%s/config",
				discoveryPrefix, SanitizeID(meta.Name), SanitizeID(p.Name)),
			Payload: payload,
		})
	}

	if hasBattery {
		cfg := sensorConfig{
			UniqueID:          DiscoveryID(meta.Address, meta.Name, "low_battery"),
			Name:              meta.Name + " low_battery",
			StateTopic:        LowBatteryTopic(topicPrefix, meta.Name),
			AvailabilityTopic: AvailabilityTopic(topicPrefix, meta.Name),
			DeviceClass:       "battery",
			Device:            device,
		}

		payload, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal low_battery discovery config for %s: %w", meta.Name, err)
		}

		messages = append(messages, ConfigMessage{
			Topic: fmt.Sprintf("%s/binary_sensor/%s/low_battery/config",
				discoveryPrefix, SanitizeID(meta.Name)),
			Payload: payload,
		})
	}

	return messages, nil
}
