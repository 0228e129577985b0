package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_OrderAndKeys(t *testing.T) {
	d := &Descriptor{
		Fan: &FanSection{
			SpeedRange:  &SpeedRange{Low: 1, High: 4},
			PresetModes: []string{"normal", "sleep"},
		},
		Light: &LightSection{Directive: "lighton"},
		Switches: []SwitchSection{
			{Directive: "muteon", Name: "Panel Sound", Icon: "mdi:volume-high"},
			{Directive: "childlockon", Name: "Child Lock"},
		},
		Selects: []SelectSection{
			{Directive: "oscmode", Name: "Oscillation Mode", Options: []string{"horizontal", "vertical", "both"}, Values: []any{1, 2, 3}},
		},
		Numbers: []NumberSection{
			{Directive: "humidity", Name: "Target Humidity", Range: Range{Min: 30, Max: 90, Step: 5}, Unit: "%"},
		},
		Sensors: []SensorSection{
			{Directive: "temperature", Name: "Temperature", Unit: "°F", DeviceClass: "temperature"},
		},
	}

	bps := d.Resolve()
	require.Len(t, bps, 6)

	assert.Equal(t, PlatformFan, bps[0].Platform)
	assert.Equal(t, "fan", bps[0].Key)
	assert.Equal(t, PlatformLight, bps[1].Platform)
	assert.Equal(t, "lighton", bps[1].Directive)
	assert.Equal(t, PlatformSwitch, bps[2].Platform)
	assert.Equal(t, "panel_sound", bps[2].Key)
	assert.Equal(t, "mdi:volume-high", bps[2].Icon)
	assert.Equal(t, "child_lock", bps[3].Key)
	assert.Equal(t, PlatformSelect, bps[4].Platform)
	assert.Equal(t, []any{1, 2, 3}, bps[4].Values)
	assert.Equal(t, PlatformNumber, bps[5].Platform)

	// determinism
	again := d.Resolve()
	require.Len(t, again, 6)
	for i := range bps {
		assert.Equal(t, bps[i].Key, again[i].Key)
	}
}

func TestResolve_EmptySpeedRangeMeansOnOffOnly(t *testing.T) {
	d := &Descriptor{
		Fan: &FanSection{SpeedRange: &SpeedRange{Low: 5, High: 2}},
	}
	bps := d.Resolve()
	require.Len(t, bps, 1)
	assert.Nil(t, bps[0].SpeedRange)
}

func TestResolve_SkipsIncompleteDeclarations(t *testing.T) {
	d := &Descriptor{
		Switches: []SwitchSection{{Name: "No Directive"}},
		Selects:  []SelectSection{{Directive: "mode", Name: "Mode"}}, // no options
	}
	assert.Empty(t, d.Resolve())
}

func TestResolve_SensorsAfterControls(t *testing.T) {
	d := &Descriptor{
		Sensors:  []SensorSection{{Directive: "rh", Name: "Humidity", Unit: "%"}},
		Switches: []SwitchSection{{Directive: "ptcon", Name: "Heater"}},
	}
	bps := d.Resolve()
	require.Len(t, bps, 2)
	assert.Equal(t, PlatformSwitch, bps[0].Platform)
	assert.Equal(t, PlatformSensor, bps[1].Platform)
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "panel_sound", sanitizeKey("Panel Sound"))
	assert.Equal(t, "eco_level_2", sanitizeKey("Eco-Level 2"))
	assert.Equal(t, "mode", sanitizeKey("Mode!"))
}
