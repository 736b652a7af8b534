package sensorbridge

// Parameter describes one value a sensor reports, together with the
// metadata used for discovery payloads.
type Parameter struct {
	// Name is the key the parameter appears under in [Readings] and in
	// the serialized telemetry payload.
	Name string

	// Unit is the unit of measurement, e.g. "°C" or "%".
	Unit string

	// DeviceClass is the discovery device class, e.g. "temperature".
	// Empty if the parameter has no standard class.
	DeviceClass string

	// Icon is an optional icon hint for dashboards, e.g. "mdi:water".
	Icon string
}

// Profile describes a family of sensor devices: the parameters they report
// and the identity metadata published in discovery payloads.
//
// A profile does not restrict what a [DeviceReader] may return; it names
// the parameters that get discovery metadata and determines whether the
// derived low-battery indicator is published.
type Profile struct {
	// Model is the hardware model name, e.g. "MiFlora".
	Model string

	// Manufacturer is the hardware vendor name.
	Manufacturer string

	// Parameters lists the values devices of this profile report.
	Parameters []Parameter
}

// HasParameter reports whether the profile declares a parameter with the
// given name.
func (p Profile) HasParameter(name string) bool {
	for _, param := range p.Parameters {
		if param.Name == name {
			return true
		}
	}
	return false
}

// ParameterNames returns the declared parameter names in order.
func (p Profile) ParameterNames() []string {
	names := make([]string, len(p.Parameters))
	for i, param := range p.Parameters {
		names[i] = param.Name
	}
	return names
}

// ParamBattery is the battery parameter name shared by the built-in
// profiles; the low-battery binary indicator derives from it.
const ParamBattery = "battery"

// ProfileMiFlora is the profile for Xiaomi MiFlora plant sensors:
// temperature, moisture, light, conductivity, and battery.
var ProfileMiFlora = Profile{
	Model:        "MiFlora",
	Manufacturer: "Xiaomi",
	Parameters: []Parameter{
		{Name: "temperature", Unit: "°C", DeviceClass: "temperature"},
		{Name: "moisture", Unit: "%", Icon: "mdi:water"},
		{Name: "light", Unit: "lux", DeviceClass: "illuminance"},
		{Name: "conductivity", Unit: "µS/cm", Icon: "mdi:leaf"},
		{Name: ParamBattery, Unit: "%", DeviceClass: "battery"},
	},
}

// ProfileThermometer is the profile for Xiaomi LYWSD-family hygrometer
// thermometers: temperature, humidity, and battery.
var ProfileThermometer = Profile{
	Model:        "LYWSD(CGQ/01ZM)",
	Manufacturer: "Xiaomi",
	Parameters: []Parameter{
		{Name: "temperature", Unit: "°C", DeviceClass: "temperature"},
		{Name: "humidity", Unit: "%", DeviceClass: "humidity"},
		{Name: ParamBattery, Unit: "%", DeviceClass: "battery"},
	},
}

// ProfileByName returns a built-in profile by its config name
// ("miflora" or "thermometer"). The second return value reports whether
// the name was recognised.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case "", "miflora":
		return ProfileMiFlora, true
	case "thermometer":
		return ProfileThermometer, true
	default:
		return Profile{}, false
	}
}
