// Package entity maps resolved capability blueprints onto Home Assistant
// entities: discovery payloads, state rendering, availability, and the
// translation of inbound commands into directive updates.
package entity

import (
	"fmt"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
	"github.com/kalpizar15/dreoverse-bridge/internal/dreo"
	"github.com/kalpizar15/dreoverse-bridge/internal/state"
)

const (
	topicBase       = "dreoverse"
	discoveryPrefix = "homeassistant"
	manufacturer    = "Dreo"

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// BridgeAvailabilityTopic carries the bridge-level LWT every entity also
// listens on.
const BridgeAvailabilityTopic = topicBase + "/bridge/availability"

// Topic helpers. Each device has one JSON state document; entities pick
// their fields with value templates.

func StateTopic(sn string) string {
	return fmt.Sprintf("%s/%s/state", topicBase, sn)
}

func DeviceAvailabilityTopic(sn string) string {
	return fmt.Sprintf("%s/%s/availability", topicBase, sn)
}

func EntityAvailabilityTopic(sn, key string) string {
	return fmt.Sprintf("%s/%s/%s/availability", topicBase, sn, key)
}

func commandTopic(sn, key, sub string) string {
	if sub == "" {
		return fmt.Sprintf("%s/%s/%s/set", topicBase, sn, key)
	}
	return fmt.Sprintf("%s/%s/%s/%s/set", topicBase, sn, key, sub)
}

// CommandTopicFilters returns the subscription filters covering every
// command topic of a device.
func CommandTopicFilters(sn string) []string {
	return []string{
		fmt.Sprintf("%s/%s/+/set", topicBase, sn),
		fmt.Sprintf("%s/%s/+/+/set", topicBase, sn),
	}
}

// Device groups the entities of one appliance.
type Device struct {
	SN       string
	Name     string
	Entities []*Entity

	block DeviceBlock
}

// Entity is one host-platform entity derived from a blueprint.
type Entity struct {
	SN        string
	Blueprint capability.Blueprint

	device *Device
}

// Build creates the entity set for a device from its resolved blueprints.
func Build(dev dreo.Device, blueprints []capability.Blueprint) *Device {
	d := &Device{
		SN:   dev.SN,
		Name: dev.Name,
		block: DeviceBlock{
			Identifiers:  []string{fmt.Sprintf("%s_%s", topicBase, dev.SN)},
			Name:         dev.Name,
			Manufacturer: manufacturer,
			Model:        dev.Model,
			SWVersion:    dev.ModuleFW,
		},
	}
	for _, bp := range blueprints {
		d.Entities = append(d.Entities, &Entity{SN: dev.SN, Blueprint: bp, device: d})
	}
	return d
}

// Discovery is one retained config message.
type Discovery struct {
	Topic   string
	Payload any
}

// Discoveries returns the discovery messages for every entity of the
// device.
func (d *Device) Discoveries() []Discovery {
	out := make([]Discovery, 0, len(d.Entities))
	for _, e := range d.Entities {
		out = append(out, Discovery{Topic: e.discoveryTopic(), Payload: e.discoveryPayload()})
	}
	return out
}

// StatePayload renders the device-level state document all entities read
// from. Keys for directive-backed controls appear only when the device has
// reported their directive.
func (d *Device) StatePayload(s *state.DeviceState) map[string]any {
	doc := map[string]any{
		"state": onOff(s.Power),
	}

	for _, e := range d.Entities {
		bp := e.Blueprint
		switch bp.Platform {
		case capability.PlatformFan:
			if bp.SpeedRange != nil {
				// A stopped fan reports percentage 0 regardless of the
				// last speed level.
				if s.Power {
					doc["percentage"] = s.Speed
				} else {
					doc["percentage"] = 0
				}
			}
			if s.PresetMode != "" {
				doc["preset_mode"] = s.PresetMode
			}
			if bp.Oscillation {
				doc["oscillation"] = oscillation(s.Oscillating)
			}
		case capability.PlatformClimate:
			doc["mode"] = s.HVACMode
			doc["target_temperature"] = s.TargetTemp
			doc["current_temperature"] = s.CurrentTemp
			if len(bp.FanModes) > 0 && s.Speed >= 1 && s.Speed <= len(bp.FanModes) {
				doc["fan_mode"] = bp.FanModes[s.Speed-1]
			}
		case capability.PlatformHumidifier:
			doc["target_humidity"] = s.TargetHumidity
			doc["current_humidity"] = s.CurrentHumidity
			if s.PresetMode != "" {
				doc["mode"] = s.PresetMode
			}
		case capability.PlatformLight:
			doc["light"] = onOff(s.LightOn)
			if bp.Brightness != nil {
				doc["brightness"] = s.Brightness
			}
		case capability.PlatformSwitch:
			if v, ok := s.Directive(bp.Directive); ok {
				if b, ok := truthy(v); ok {
					doc[bp.Key] = onOff(b)
				}
			}
		case capability.PlatformSelect:
			if v, ok := s.Directive(bp.Directive); ok {
				if opt, ok := optionForValue(bp, v); ok {
					doc[bp.Key] = opt
				}
			}
		case capability.PlatformNumber, capability.PlatformSensor:
			if v, ok := s.Directive(bp.Directive); ok {
				doc[bp.Key] = v
			}
		}
	}
	return doc
}

// Available reports whether the entity's dependency rule holds for the
// given state.
func (e *Entity) Available(s *state.DeviceState) bool {
	if s == nil {
		return false
	}
	return e.Blueprint.Dependency.Evaluate(s.Raw)
}

// HasDependency reports whether the entity carries a dependency rule and
// therefore owns an availability topic of its own.
func (e *Entity) HasDependency() bool {
	return e.Blueprint.Dependency != nil && len(e.Blueprint.Dependency.Conditions) > 0
}

// AvailabilityTopic returns the entity's own availability topic.
func (e *Entity) AvailabilityTopic() string {
	return EntityAvailabilityTopic(e.SN, e.Blueprint.Key)
}

func (e *Entity) discoveryTopic() string {
	node := fmt.Sprintf("%s_%s", topicBase, e.SN)
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, e.Blueprint.Platform, node, e.Blueprint.Key)
}

func (e *Entity) discoveryPayload() any {
	bp := e.Blueprint
	stateTopic := StateTopic(e.SN)

	cfg := discoveryConfig{
		Name:     bp.Name,
		UniqueID: fmt.Sprintf("%s_%s_%s", topicBase, e.SN, bp.Key),
		ObjectID: fmt.Sprintf("%s_%s_%s", topicBase, sanitizedSN(e.SN), bp.Key),
		Device:   e.device.block,
		Availability: []Availability{
			{Topic: BridgeAvailabilityTopic},
			{Topic: DeviceAvailabilityTopic(e.SN)},
		},
		AvailabilityMode: "all",
	}
	if e.HasDependency() {
		cfg.Availability = append(cfg.Availability, Availability{Topic: e.AvailabilityTopic()})
	}

	switch bp.Platform {
	case capability.PlatformFan:
		cfg.StateTopic = stateTopic
		cfg.StateValueTemplate = "{{ value_json.state }}"
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		if bp.SpeedRange != nil {
			cfg.PercentageStateTopic = stateTopic
			cfg.PercentageValueTemplate = "{{ value_json.percentage }}"
			cfg.PercentageCommandTopic = commandTopic(e.SN, bp.Key, "percentage")
			cfg.SpeedRangeMin = bp.SpeedRange.Low
			cfg.SpeedRangeMax = bp.SpeedRange.High
		}
		if len(bp.PresetModes) > 0 {
			cfg.PresetModes = bp.PresetModes
			cfg.PresetModeStateTopic = stateTopic
			cfg.PresetModeValueTemplate = "{{ value_json.preset_mode }}"
			cfg.PresetModeCommandTopic = commandTopic(e.SN, bp.Key, "preset")
		}
		if bp.Oscillation {
			cfg.OscillationStateTopic = stateTopic
			cfg.OscillationValueTemplate = "{{ value_json.oscillation }}"
			cfg.OscillationCommandTopic = commandTopic(e.SN, bp.Key, "oscillate")
		}

	case capability.PlatformClimate:
		cfg.Modes = append([]string{"off"}, bp.Modes...)
		cfg.ModeStateTopic = stateTopic
		cfg.ModeStateTemplate = "{{ value_json.mode }}"
		cfg.ModeCommandTopic = commandTopic(e.SN, bp.Key, "mode")
		cfg.TemperatureStateTopic = stateTopic
		cfg.TemperatureStateTemplate = "{{ value_json.target_temperature }}"
		cfg.TemperatureCommandTopic = commandTopic(e.SN, bp.Key, "temperature")
		cfg.CurrentTemperatureTopic = stateTopic
		cfg.CurrentTemperatureTemplate = "{{ value_json.current_temperature }}"
		if bp.TempRange != nil {
			cfg.MinTemp = bp.TempRange.Min
			cfg.MaxTemp = bp.TempRange.Max
			cfg.TempStep = bp.TempRange.Step
		}
		if len(bp.FanModes) > 0 {
			cfg.FanModes = bp.FanModes
			cfg.FanModeStateTopic = stateTopic
			cfg.FanModeStateTemplate = "{{ value_json.fan_mode }}"
			cfg.FanModeCommandTopic = commandTopic(e.SN, bp.Key, "fan_mode")
		}

	case capability.PlatformHumidifier:
		cfg.StateTopic = stateTopic
		cfg.StateValueTemplate = "{{ value_json.state }}"
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		cfg.TargetHumidityStateTopic = stateTopic
		cfg.TargetHumidityStateTemplate = "{{ value_json.target_humidity }}"
		cfg.TargetHumidityCommandTopic = commandTopic(e.SN, bp.Key, "humidity")
		cfg.CurrentHumidityTopic = stateTopic
		cfg.CurrentHumidityTemplate = "{{ value_json.current_humidity }}"
		if bp.HumidityRange != nil {
			cfg.MinHumidity = bp.HumidityRange.Min
			cfg.MaxHumidity = bp.HumidityRange.Max
		}

	case capability.PlatformLight:
		cfg.StateTopic = stateTopic
		cfg.StateValueTemplate = "{{ value_json.light }}"
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		if bp.Brightness != nil {
			cfg.BrightnessStateTopic = stateTopic
			cfg.BrightnessValueTemplate = "{{ value_json.brightness }}"
			cfg.BrightnessCommandTopic = commandTopic(e.SN, bp.Key, "brightness")
			cfg.BrightnessScale = int(bp.Brightness.Max)
		}

	case capability.PlatformSwitch:
		cfg.StateTopic = stateTopic
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", bp.Key)
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		cfg.Icon = bp.Icon
		cfg.PayloadOn = "ON"
		cfg.PayloadOff = "OFF"

	case capability.PlatformSelect:
		cfg.StateTopic = stateTopic
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", bp.Key)
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		cfg.Options = bp.Options

	case capability.PlatformNumber:
		cfg.StateTopic = stateTopic
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", bp.Key)
		cfg.CommandTopic = commandTopic(e.SN, bp.Key, "")
		if bp.Range != nil {
			cfg.Min = bp.Range.Min
			cfg.Max = bp.Range.Max
			cfg.Step = bp.Range.Step
		}
		cfg.UnitOfMeasurement = bp.Unit

	case capability.PlatformSensor:
		cfg.StateTopic = stateTopic
		cfg.ValueTemplate = fmt.Sprintf("{{ value_json.%s }}", bp.Key)
		cfg.UnitOfMeasurement = bp.Unit
		cfg.DeviceClass = bp.DeviceClass
		cfg.StateClass = bp.StateClass
	}

	return cfg
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func oscillation(b bool) string {
	if b {
		return "oscillate_on"
	}
	return "oscillate_off"
}

func truthy(v any) (bool, bool) {
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

func optionForValue(bp capability.Blueprint, v any) (string, bool) {
	if len(bp.Values) == len(bp.Options) && len(bp.Values) > 0 {
		for i, wire := range bp.Values {
			if scalarEq(wire, v) {
				return bp.Options[i], true
			}
		}
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	for _, opt := range bp.Options {
		if opt == s {
			return opt, true
		}
	}
	return "", false
}

func valueForOption(bp capability.Blueprint, opt string) (any, bool) {
	for i, o := range bp.Options {
		if o != opt {
			continue
		}
		if len(bp.Values) == len(bp.Options) && len(bp.Values) > 0 {
			return bp.Values[i], true
		}
		return opt, true
	}
	return nil, false
}

func scalarEq(a, b any) bool {
	af, aok := toNumber(a)
	bf, bok := toNumber(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func sanitizedSN(sn string) string {
	out := make([]rune, 0, len(sn))
	for _, r := range sn {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
