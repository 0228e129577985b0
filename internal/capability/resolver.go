package capability

import "strings"

// Platform names the host entity domain a blueprint maps onto.
type Platform string

const (
	PlatformFan        Platform = "fan"
	PlatformClimate    Platform = "climate"
	PlatformHumidifier Platform = "humidifier"
	PlatformLight      Platform = "light"
	PlatformNumber     Platform = "number"
	PlatformSelect     Platform = "select"
	PlatformSensor     Platform = "sensor"
	PlatformSwitch     Platform = "switch"
)

// Blueprint is one entity the resolver decided a device should expose.
// The entity layer turns blueprints into discovery payloads and command
// handlers without re-reading the descriptor.
type Blueprint struct {
	Platform  Platform
	Key       string // object id suffix, unique per device
	Name      string
	Directive string
	Icon      string

	// Fan
	SpeedRange  *SpeedRange
	PresetModes []string
	Oscillation bool

	// Climate
	Modes     []string
	TempRange *Range
	FanModes  []string

	// Humidifier
	HumidityRange *Range

	// Number
	Range *Range
	Unit  string

	// Select
	Options []string
	Values  []any

	// Sensor
	DeviceClass string
	StateClass  string

	// Light
	Brightness *Range

	// Availability gate, nil when always available.
	Dependency *Rule
}

// Resolve returns the entity blueprints for a device descriptor. The
// result is deterministic: main sections first, then the declared lists in
// their declared order.
func (d *Descriptor) Resolve() []Blueprint {
	var out []Blueprint

	if d.Fan != nil {
		speed := d.Fan.SpeedRange
		if speed != nil && speed.Levels() == 0 {
			// A range declaring no levels degrades the fan to on/off only.
			speed = nil
		}
		out = append(out, Blueprint{
			Platform:    PlatformFan,
			Key:         "fan",
			Name:        "Fan",
			SpeedRange:  speed,
			PresetModes: d.Fan.PresetModes,
			Oscillation: d.Fan.Oscillation,
		})
	}

	if d.Climate != nil {
		out = append(out, Blueprint{
			Platform:  PlatformClimate,
			Key:       "climate",
			Name:      "Climate",
			Modes:     d.Climate.Modes,
			TempRange: d.Climate.TempRange,
			FanModes:  d.Climate.FanModes,
		})
	}

	if d.Humidifier != nil {
		out = append(out, Blueprint{
			Platform:      PlatformHumidifier,
			Key:           "humidifier",
			Name:          "Humidifier",
			HumidityRange: d.Humidifier.HumidityRange,
			Modes:         d.Humidifier.Modes,
		})
	}

	if d.Light != nil {
		out = append(out, Blueprint{
			Platform:   PlatformLight,
			Key:        "light",
			Name:       "Light",
			Directive:  d.Light.Directive,
			Brightness: d.Light.Brightness,
		})
	}

	for _, s := range d.Switches {
		if s.Directive == "" {
			continue
		}
		out = append(out, Blueprint{
			Platform:   PlatformSwitch,
			Key:        keyFor(s.Name, s.Directive),
			Name:       s.Name,
			Directive:  s.Directive,
			Icon:       s.Icon,
			Dependency: s.Dependency,
		})
	}

	for _, s := range d.Selects {
		if s.Directive == "" || len(s.Options) == 0 {
			continue
		}
		out = append(out, Blueprint{
			Platform:   PlatformSelect,
			Key:        keyFor(s.Name, s.Directive),
			Name:       s.Name,
			Directive:  s.Directive,
			Options:    s.Options,
			Values:     s.Values,
			Dependency: s.Dependency,
		})
	}

	for _, n := range d.Numbers {
		if n.Directive == "" {
			continue
		}
		r := n.Range
		out = append(out, Blueprint{
			Platform:   PlatformNumber,
			Key:        keyFor(n.Name, n.Directive),
			Name:       n.Name,
			Directive:  n.Directive,
			Range:      &r,
			Unit:       n.Unit,
			Dependency: n.Dependency,
		})
	}

	for _, s := range d.Sensors {
		if s.Directive == "" {
			continue
		}
		out = append(out, Blueprint{
			Platform:    PlatformSensor,
			Key:         keyFor(s.Name, s.Directive),
			Name:        s.Name,
			Directive:   s.Directive,
			Unit:        s.Unit,
			DeviceClass: s.DeviceClass,
			StateClass:  s.StateClass,
		})
	}

	return out
}

// keyFor builds a stable object id suffix from the declared name, falling
// back to the directive when no name is given.
func keyFor(name, directive string) string {
	base := name
	if base == "" {
		base = directive
	}
	return sanitizeKey(base)
}

func sanitizeKey(name string) string {
	key := strings.ToLower(name)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	var b strings.Builder
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
