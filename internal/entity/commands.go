package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
	"github.com/kalpizar15/dreoverse-bridge/internal/state"
)

// HandleCommand translates an inbound command topic and payload into the
// directive map to send to the cloud. The topic must be one of the
// device's command topics.
func (d *Device) HandleCommand(topic string, payload []byte) (map[string]any, error) {
	key, sub, err := splitCommandTopic(topic, d.SN)
	if err != nil {
		return nil, err
	}

	for _, e := range d.Entities {
		if e.Blueprint.Key == key {
			return e.command(sub, strings.TrimSpace(string(payload)))
		}
	}
	return nil, fmt.Errorf("no entity %q on device %s", key, d.SN)
}

func splitCommandTopic(topic, sn string) (key, sub string, err error) {
	prefix := fmt.Sprintf("%s/%s/", topicBase, sn)
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok || !strings.HasSuffix(rest, "/set") {
		return "", "", fmt.Errorf("not a command topic for %s: %s", sn, topic)
	}
	rest = strings.TrimSuffix(rest, "/set")

	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("malformed command topic: %s", topic)
	}
}

func (e *Entity) command(sub, payload string) (map[string]any, error) {
	bp := e.Blueprint
	switch bp.Platform {
	case capability.PlatformFan:
		return e.fanCommand(sub, payload)
	case capability.PlatformClimate:
		return e.climateCommand(sub, payload)
	case capability.PlatformHumidifier:
		return e.humidifierCommand(sub, payload)
	case capability.PlatformLight:
		return e.lightCommand(sub, payload)
	case capability.PlatformSwitch:
		on, err := parseOnOff(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{bp.Directive: on}, nil
	case capability.PlatformSelect:
		v, ok := valueForOption(bp, payload)
		if !ok {
			return nil, fmt.Errorf("unknown option %q for %s", payload, bp.Key)
		}
		return map[string]any{bp.Directive: v}, nil
	case capability.PlatformNumber:
		n, err := parseNumber(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{bp.Directive: n}, nil
	default:
		return nil, fmt.Errorf("entity %s does not accept commands", bp.Key)
	}
}

func (e *Entity) fanCommand(sub, payload string) (map[string]any, error) {
	bp := e.Blueprint
	switch sub {
	case "":
		on, err := parseOnOff(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{state.DirectivePower: on}, nil
	case "percentage":
		level, err := strconv.Atoi(payload)
		if err != nil {
			return nil, fmt.Errorf("bad speed level %q: %w", payload, err)
		}
		if level == 0 {
			return map[string]any{state.DirectivePower: false}, nil
		}
		if bp.SpeedRange != nil && (level < bp.SpeedRange.Low || level > bp.SpeedRange.High) {
			return nil, fmt.Errorf("speed level %d outside range %d..%d", level, bp.SpeedRange.Low, bp.SpeedRange.High)
		}
		return map[string]any{state.DirectivePower: true, state.DirectiveWindLevel: level}, nil
	case "preset":
		idx := indexOf(bp.PresetModes, payload)
		if idx < 0 {
			return nil, fmt.Errorf("unknown preset mode %q", payload)
		}
		return map[string]any{state.DirectivePower: true, state.DirectiveMode: idx + 1}, nil
	case "oscillate":
		on := payload == "oscillate_on"
		if !on && payload != "oscillate_off" {
			return nil, fmt.Errorf("bad oscillation payload %q", payload)
		}
		return map[string]any{state.DirectiveShakeHorizon: on}, nil
	default:
		return nil, fmt.Errorf("unknown fan command %q", sub)
	}
}

func (e *Entity) climateCommand(sub, payload string) (map[string]any, error) {
	bp := e.Blueprint
	switch sub {
	case "mode":
		if payload == "off" {
			return map[string]any{state.DirectivePower: false}, nil
		}
		idx := indexOf(bp.Modes, payload)
		if idx < 0 {
			return nil, fmt.Errorf("unknown hvac mode %q", payload)
		}
		return map[string]any{state.DirectivePower: true, state.DirectiveMode: idx + 1}, nil
	case "temperature":
		n, err := parseNumber(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{state.DirectiveTargetTemp: n}, nil
	case "fan_mode":
		idx := indexOf(bp.FanModes, payload)
		if idx < 0 {
			return nil, fmt.Errorf("unknown fan mode %q", payload)
		}
		return map[string]any{state.DirectiveWindLevel: idx + 1}, nil
	default:
		return nil, fmt.Errorf("unknown climate command %q", sub)
	}
}

func (e *Entity) humidifierCommand(sub, payload string) (map[string]any, error) {
	bp := e.Blueprint
	switch sub {
	case "":
		on, err := parseOnOff(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{state.DirectivePower: on}, nil
	case "humidity":
		n, err := parseNumber(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{state.DirectiveTargetRH: n}, nil
	case "mode":
		idx := indexOf(bp.Modes, payload)
		if idx < 0 {
			return nil, fmt.Errorf("unknown humidifier mode %q", payload)
		}
		return map[string]any{state.DirectiveMode: idx + 1}, nil
	default:
		return nil, fmt.Errorf("unknown humidifier command %q", sub)
	}
}

func (e *Entity) lightCommand(sub, payload string) (map[string]any, error) {
	directive := e.Blueprint.Directive
	if directive == "" {
		directive = state.DirectiveLight
	}

	switch sub {
	case "":
		on, err := parseOnOff(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{directive: on}, nil
	case "brightness":
		n, err := parseNumber(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{state.DirectiveBrightness: n}, nil
	default:
		return nil, fmt.Errorf("unknown light command %q", sub)
	}
}

func parseOnOff(payload string) (bool, error) {
	switch payload {
	case "ON", "on":
		return true, nil
	case "OFF", "off":
		return false, nil
	default:
		return false, fmt.Errorf("bad on/off payload %q", payload)
	}
}

// parseNumber keeps whole values as int so the cloud sees the integer
// directives it expects.
func parseNumber(payload string) (any, error) {
	f, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		return nil, fmt.Errorf("bad numeric payload %q: %w", payload, err)
	}
	if f == float64(int(f)) {
		return int(f), nil
	}
	return f, nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
