package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalpizar15/dreoverse-bridge/internal/capability"
)

func fanDescriptor() *capability.Descriptor {
	return &capability.Descriptor{
		Fan: &capability.FanSection{
			SpeedRange:  &capability.SpeedRange{Low: 1, High: 6},
			PresetModes: []string{"normal", "natural", "sleep", "auto"},
			Oscillation: true,
		},
	}
}

func TestProcessFan(t *testing.T) {
	raw := map[string]any{
		"poweron":      true,
		"windlevel":    float64(3),
		"mode":         float64(2),
		"shakehorizon": false,
		"temperature":  float64(71),
		"lighton":      float64(1),
	}

	s, err := ProcessorFor(TypeTowerFan)(raw, fanDescriptor())
	require.NoError(t, err)

	assert.True(t, s.Power)
	assert.Equal(t, 3, s.Speed)
	assert.Equal(t, "natural", s.PresetMode)
	assert.False(t, s.Oscillating)
	assert.Equal(t, 71.0, s.CurrentTemp)
	assert.True(t, s.LightOn)
}

func TestProcessFan_ModeOutOfRange(t *testing.T) {
	raw := map[string]any{"poweron": true, "mode": float64(9)}
	s, err := ProcessorFor(TypeFan)(raw, fanDescriptor())
	require.NoError(t, err)
	assert.Empty(t, s.PresetMode)
}

func TestProcessFan_CopiesSnapshot(t *testing.T) {
	raw := map[string]any{"poweron": true}
	s, err := ProcessorFor(TypeFan)(raw, fanDescriptor())
	require.NoError(t, err)

	raw["poweron"] = false
	v, ok := s.Directive("poweron")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestProcessClimate(t *testing.T) {
	desc := &capability.Descriptor{
		Climate: &capability.ClimateSection{
			Modes:    []string{"heat", "eco", "fan_only"},
			FanModes: []string{"low", "high"},
		},
	}

	t.Run("powered on", func(t *testing.T) {
		raw := map[string]any{
			"poweron":     true,
			"mode":        float64(1),
			"temperature": float64(68),
			"ecolevel":    float64(72),
			"windlevel":   float64(2),
		}
		s, err := ProcessorFor(TypeHeater)(raw, desc)
		require.NoError(t, err)
		assert.Equal(t, "heat", s.HVACMode)
		assert.Equal(t, 68.0, s.CurrentTemp)
		assert.Equal(t, 72.0, s.TargetTemp)
		assert.Equal(t, 2, s.Speed)
	})

	t.Run("powered off reports off regardless of mode", func(t *testing.T) {
		raw := map[string]any{"poweron": false, "mode": float64(2)}
		s, err := ProcessorFor(TypeAC)(raw, desc)
		require.NoError(t, err)
		assert.Equal(t, "off", s.HVACMode)
	})
}

func TestProcessHumidifier(t *testing.T) {
	desc := &capability.Descriptor{
		Humidifier: &capability.HumidifierSection{
			HumidityRange: &capability.Range{Min: 30, Max: 90},
			Modes:         []string{"manual", "auto", "sleep"},
		},
	}
	raw := map[string]any{
		"poweron":  true,
		"rh":       float64(44),
		"humidity": float64(55),
		"mode":     float64(2),
	}

	s, err := ProcessorFor(TypeHumidifier)(raw, desc)
	require.NoError(t, err)
	assert.Equal(t, 44.0, s.CurrentHumidity)
	assert.Equal(t, 55.0, s.TargetHumidity)
	assert.Equal(t, "auto", s.PresetMode)
}

func TestProcessGeneric_UnknownType(t *testing.T) {
	raw := map[string]any{"poweron": float64(1), "wrong": float64(2)}
	s, err := ProcessorFor("air-purifier")(raw, nil)
	require.NoError(t, err)
	assert.True(t, s.Power)
	assert.Equal(t, 2, s.ErrorCode)
}

func TestProcess_NilSnapshot(t *testing.T) {
	_, err := ProcessorFor(TypeFan)(nil, fanDescriptor())
	require.Error(t, err)
}

func TestCoercions(t *testing.T) {
	t.Run("asBool", func(t *testing.T) {
		for _, v := range []any{true, float64(1), 1, "on", "1", "ON"} {
			got, ok := asBool(v)
			assert.True(t, ok, "value %v", v)
			assert.True(t, got, "value %v", v)
		}
		for _, v := range []any{false, float64(0), "off", "OFF"} {
			got, ok := asBool(v)
			assert.True(t, ok, "value %v", v)
			assert.False(t, got, "value %v", v)
		}
		_, ok := asBool("maybe")
		assert.False(t, ok)
	})

	t.Run("asInt", func(t *testing.T) {
		got, ok := asInt(float64(4))
		assert.True(t, ok)
		assert.Equal(t, 4, got)
		_, ok = asInt("4")
		assert.False(t, ok)
	})
}
