package state

import (
	"fmt"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
)

// DeviceState is the typed view of one device's directive map. Fields not
// meaningful for a device family keep their zero value; Raw always holds
// the full merged snapshot for controls addressed by directive name.
type DeviceState struct {
	Power       bool
	Speed       int
	PresetMode  string
	Oscillating bool

	HVACMode    string
	TargetTemp  float64
	CurrentTemp float64

	TargetHumidity  float64
	CurrentHumidity float64

	LightOn    bool
	Brightness float64

	ErrorCode int

	Raw map[string]any
}

// Directive returns the raw value of a directive and whether the device
// has reported it.
func (s *DeviceState) Directive(name string) (any, bool) {
	v, ok := s.Raw[name]
	return v, ok
}

// Processor converts a raw snapshot into typed state for one device
// family. The descriptor supplies model-specific lookups such as the
// preset mode list.
type Processor func(raw map[string]any, desc *capability.Descriptor) (*DeviceState, error)

// ProcessorFor selects the processor for a device type. Unknown types get
// the generic processor, which exposes power and raw directives only.
func ProcessorFor(deviceType string) Processor {
	switch deviceType {
	case TypeFan, TypeTowerFan, TypeCirculationFan, TypeCeilingFan:
		return processFan
	case TypeHeater, TypeAC:
		return processClimate
	case TypeHumidifier, TypeDehumidifier:
		return processHumidifier
	default:
		return processGeneric
	}
}

func processFan(raw map[string]any, desc *capability.Descriptor) (*DeviceState, error) {
	s, err := base(raw)
	if err != nil {
		return nil, err
	}

	s.Speed, _ = asInt(raw[DirectiveWindLevel])
	s.Oscillating, _ = asBool(raw[DirectiveShakeHorizon])
	s.CurrentTemp, _ = asFloat(raw[DirectiveTemperature])
	s.LightOn, _ = asBool(raw[DirectiveLight])
	s.Brightness, _ = asFloat(raw[DirectiveBrightness])

	// The mode directive is a 1-based index into the model's preset list.
	if mode, ok := asInt(raw[DirectiveMode]); ok && desc != nil && desc.Fan != nil {
		if mode >= 1 && mode <= len(desc.Fan.PresetModes) {
			s.PresetMode = desc.Fan.PresetModes[mode-1]
		}
	}

	return s, nil
}

func processClimate(raw map[string]any, desc *capability.Descriptor) (*DeviceState, error) {
	s, err := base(raw)
	if err != nil {
		return nil, err
	}

	s.CurrentTemp, _ = asFloat(raw[DirectiveTemperature])
	s.TargetTemp, _ = asFloat(raw[DirectiveTargetTemp])
	s.Speed, _ = asInt(raw[DirectiveWindLevel])
	s.LightOn, _ = asBool(raw[DirectiveLight])

	if !s.Power {
		s.HVACMode = "off"
	} else if mode, ok := asInt(raw[DirectiveMode]); ok && desc != nil && desc.Climate != nil {
		if mode >= 1 && mode <= len(desc.Climate.Modes) {
			s.HVACMode = desc.Climate.Modes[mode-1]
		}
	}

	return s, nil
}

func processHumidifier(raw map[string]any, desc *capability.Descriptor) (*DeviceState, error) {
	s, err := base(raw)
	if err != nil {
		return nil, err
	}

	s.CurrentHumidity, _ = asFloat(raw[DirectiveHumidity])
	s.TargetHumidity, _ = asFloat(raw[DirectiveTargetRH])
	s.LightOn, _ = asBool(raw[DirectiveLight])

	if mode, ok := asInt(raw[DirectiveMode]); ok && desc != nil && desc.Humidifier != nil {
		if mode >= 1 && mode <= len(desc.Humidifier.Modes) {
			s.PresetMode = desc.Humidifier.Modes[mode-1]
		}
	}

	return s, nil
}

func processGeneric(raw map[string]any, _ *capability.Descriptor) (*DeviceState, error) {
	return base(raw)
}

func base(raw map[string]any) (*DeviceState, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil state snapshot")
	}

	snapshot := make(map[string]any, len(raw))
	for k, v := range raw {
		snapshot[k] = v
	}

	s := &DeviceState{Raw: snapshot}
	s.Power, _ = asBool(raw[DirectivePower])
	s.ErrorCode, _ = asInt(raw[DirectiveError])
	return s, nil
}

// The cloud is loose with value types: booleans arrive as bool, 0/1, or
// "on"/"off" depending on firmware. These coercions are shared by every
// processor.

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case string:
		switch b {
		case "on", "true", "1", "ON":
			return true, true
		case "off", "false", "0", "OFF":
			return false, true
		}
	}
	return false, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
