// Package capability turns the server-declared per-device descriptor into
// the set of host-platform entities a device gets, and evaluates the
// dependency rules that gate secondary controls at run time.
package capability

import (
	"encoding/json"
	"fmt"
)

// Range is an inclusive numeric range with an optional step.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step,omitempty"`
}

// SpeedRange is the fan speed span as [low, high] levels.
type SpeedRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Levels returns the number of discrete speed levels.
func (r SpeedRange) Levels() int {
	if r.High < r.Low {
		return 0
	}
	return r.High - r.Low + 1
}

// Descriptor is the parsed capability blob (controlsConf) for one device
// model. Every section is optional; a missing section means the device has
// no entities of that kind.
type Descriptor struct {
	Fan        *FanSection        `json:"fan,omitempty"`
	Climate    *ClimateSection    `json:"climate,omitempty"`
	Humidifier *HumidifierSection `json:"humidifier,omitempty"`
	Light      *LightSection      `json:"light,omitempty"`
	Switches   []SwitchSection    `json:"switches,omitempty"`
	Selects    []SelectSection    `json:"selects,omitempty"`
	Numbers    []NumberSection    `json:"numbers,omitempty"`
	Sensors    []SensorSection    `json:"sensors,omitempty"`
}

// FanSection declares the main fan entity.
type FanSection struct {
	SpeedRange  *SpeedRange `json:"speed_range,omitempty"`
	PresetModes []string    `json:"preset_modes,omitempty"`
	Oscillation bool        `json:"oscillation,omitempty"`
}

// ClimateSection declares a climate entity (heaters, ACs).
type ClimateSection struct {
	Modes     []string `json:"hvac_modes,omitempty"`
	TempRange *Range   `json:"temp_range,omitempty"`
	FanModes  []string `json:"fan_modes,omitempty"`
}

// HumidifierSection declares a humidifier entity.
type HumidifierSection struct {
	HumidityRange *Range   `json:"humidity_range,omitempty"`
	Modes         []string `json:"modes,omitempty"`
}

// LightSection declares the device panel/ambient light.
type LightSection struct {
	Directive  string `json:"directive"`
	Brightness *Range `json:"brightness,omitempty"`
}

// SwitchSection declares one toggle control.
type SwitchSection struct {
	Directive  string `json:"directive"`
	Name       string `json:"name"`
	Icon       string `json:"icon,omitempty"`
	Dependency *Rule  `json:"dependency,omitempty"`
}

// SelectSection declares one option-list control. Values, when present,
// is parallel to Options and holds the wire value each option maps to;
// without it the option string itself goes on the wire.
type SelectSection struct {
	Directive  string   `json:"directive"`
	Name       string   `json:"name"`
	Options    []string `json:"options"`
	Values     []any    `json:"values,omitempty"`
	Dependency *Rule    `json:"dependency,omitempty"`
}

// NumberSection declares one numeric control.
type NumberSection struct {
	Directive  string `json:"directive"`
	Name       string `json:"name"`
	Range      Range  `json:"range"`
	Unit       string `json:"unit,omitempty"`
	Dependency *Rule  `json:"dependency,omitempty"`
}

// SensorSection declares one read-only value.
type SensorSection struct {
	Directive   string `json:"directive"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	DeviceClass string `json:"device_class,omitempty"`
	StateClass  string `json:"state_class,omitempty"`
}

// Parse decodes a raw controlsConf blob. A nil or empty blob parses to an
// empty descriptor, which resolves to zero entities.
func Parse(raw json.RawMessage) (*Descriptor, error) {
	d := &Descriptor{}
	if len(raw) == 0 || string(raw) == "null" {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("parse capability descriptor: %w", err)
	}
	return d, nil
}

// Empty reports whether the descriptor declares no entities at all.
func (d *Descriptor) Empty() bool {
	return d.Fan == nil && d.Climate == nil && d.Humidifier == nil &&
		d.Light == nil && len(d.Switches) == 0 && len(d.Selects) == 0 &&
		len(d.Numbers) == 0 && len(d.Sensors) == 0
}
