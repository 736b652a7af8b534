// Package mqtt provides the MQTT publishing adapter and message layout for
// SensorBridge.
//
// This package is internal to SensorBridge and owns everything broker
// shaped: the paho client wrapper implementing the bridge's Publisher
// port, the topic layout under the configured prefix, the serialized
// telemetry and availability payloads, and the Home Assistant discovery
// config messages generated per monitored parameter.
//
// Topic layout, with prefix p and device name d:
//
//	p/d               telemetry, JSON object of parameter -> value
//	p/d/availability  literal "online"/"offline", retained
//	p/d/low_battery   literal "ON"/"OFF", derived from the battery reading
//	p/bridge/availability  gateway liveness, retained, also the LWT topic
//
// Users of the sensorbridge library should not need to interact with this
// package directly; any Publisher implementation can replace the bundled
// adapter.
package mqtt
