package entity

// Home Assistant MQTT discovery payloads. One retained config message per
// entity under homeassistant/<platform>/<node>/<object>/config makes the
// entity appear on the host with no configuration on its side.

// DeviceBlock groups all of a device's entities under one device entry in
// the host registry.
type DeviceBlock struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// Availability is one entry of an entity's availability topic list.
type Availability struct {
	Topic string `json:"topic"`
}

// discoveryConfig covers the fields the bridge uses across all eight
// platforms; omitempty keeps each platform's payload minimal.
type discoveryConfig struct {
	Name             string         `json:"name"`
	UniqueID         string         `json:"unique_id"`
	ObjectID         string         `json:"object_id,omitempty"`
	Device           DeviceBlock    `json:"device"`
	Availability     []Availability `json:"availability,omitempty"`
	AvailabilityMode string         `json:"availability_mode,omitempty"`
	Icon             string         `json:"icon,omitempty"`

	StateTopic   string `json:"state_topic,omitempty"`
	CommandTopic string `json:"command_topic,omitempty"`

	// Fan
	PercentageStateTopic     string   `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic   string   `json:"percentage_command_topic,omitempty"`
	PercentageValueTemplate  string   `json:"percentage_value_template,omitempty"`
	SpeedRangeMin            int      `json:"speed_range_min,omitempty"`
	SpeedRangeMax            int      `json:"speed_range_max,omitempty"`
	PresetModes              []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic     string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic   string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeValueTemplate  string   `json:"preset_mode_value_template,omitempty"`
	OscillationStateTopic    string   `json:"oscillation_state_topic,omitempty"`
	OscillationCommandTopic  string   `json:"oscillation_command_topic,omitempty"`
	OscillationValueTemplate string   `json:"oscillation_value_template,omitempty"`

	// Climate
	Modes                      []string `json:"modes,omitempty"`
	ModeStateTopic             string   `json:"mode_state_topic,omitempty"`
	ModeCommandTopic           string   `json:"mode_command_topic,omitempty"`
	ModeStateTemplate          string   `json:"mode_state_template,omitempty"`
	TemperatureStateTopic      string   `json:"temperature_state_topic,omitempty"`
	TemperatureCommandTopic    string   `json:"temperature_command_topic,omitempty"`
	TemperatureStateTemplate   string   `json:"temperature_state_template,omitempty"`
	CurrentTemperatureTopic    string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTemplate string   `json:"current_temperature_template,omitempty"`
	MinTemp                    float64  `json:"min_temp,omitempty"`
	MaxTemp                    float64  `json:"max_temp,omitempty"`
	TempStep                   float64  `json:"temp_step,omitempty"`
	FanModes                   []string `json:"fan_modes,omitempty"`
	FanModeStateTopic          string   `json:"fan_mode_state_topic,omitempty"`
	FanModeCommandTopic        string   `json:"fan_mode_command_topic,omitempty"`
	FanModeStateTemplate       string   `json:"fan_mode_state_template,omitempty"`

	// Humidifier
	TargetHumidityStateTopic    string  `json:"target_humidity_state_topic,omitempty"`
	TargetHumidityCommandTopic  string  `json:"target_humidity_command_topic,omitempty"`
	TargetHumidityStateTemplate string  `json:"target_humidity_state_template,omitempty"`
	CurrentHumidityTopic        string  `json:"current_humidity_topic,omitempty"`
	CurrentHumidityTemplate     string  `json:"current_humidity_template,omitempty"`
	MinHumidity                 float64 `json:"min_humidity,omitempty"`
	MaxHumidity                 float64 `json:"max_humidity,omitempty"`

	// Light
	BrightnessStateTopic    string `json:"brightness_state_topic,omitempty"`
	BrightnessCommandTopic  string `json:"brightness_command_topic,omitempty"`
	BrightnessValueTemplate string `json:"brightness_value_template,omitempty"`
	BrightnessScale         int    `json:"brightness_scale,omitempty"`

	// Number
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Step float64 `json:"step,omitempty"`

	// Select
	Options []string `json:"options,omitempty"`

	// Sensor
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`

	StateValueTemplate string `json:"state_value_template,omitempty"`
	ValueTemplate      string `json:"value_template,omitempty"`
	PayloadOn          string `json:"payload_on,omitempty"`
	PayloadOff         string `json:"payload_off,omitempty"`
}
