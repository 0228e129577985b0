package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyBlob(t *testing.T) {
	for _, raw := range []string{"", "null", "{}"} {
		d, err := Parse([]byte(raw))
		require.NoError(t, err, "raw=%q", raw)
		assert.True(t, d.Empty(), "raw=%q", raw)
		assert.Empty(t, d.Resolve(), "raw=%q", raw)
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"fan":`))
	require.Error(t, err)
}

func TestParse_FanDescriptor(t *testing.T) {
	raw := []byte(`{
		"fan": {
			"speed_range": {"low": 1, "high": 6},
			"preset_modes": ["normal", "natural", "sleep", "auto"],
			"oscillation": true
		},
		"switches": [
			{"directive": "muteon", "name": "Panel Sound"}
		]
	}`)

	d, err := Parse(raw)
	require.NoError(t, err)
	require.NotNil(t, d.Fan)
	assert.False(t, d.Empty())
	assert.Equal(t, 6, d.Fan.SpeedRange.Levels())
	assert.Equal(t, []string{"normal", "natural", "sleep", "auto"}, d.Fan.PresetModes)
	assert.True(t, d.Fan.Oscillation)
	require.Len(t, d.Switches, 1)
	assert.Equal(t, "muteon", d.Switches[0].Directive)
}

func TestSpeedRange_Levels(t *testing.T) {
	assert.Equal(t, 6, SpeedRange{Low: 1, High: 6}.Levels())
	assert.Equal(t, 1, SpeedRange{Low: 3, High: 3}.Levels())
	assert.Equal(t, 0, SpeedRange{Low: 5, High: 2}.Levels())
}
