package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalpizar15/dreoverse-bridge/internal/dreo"
)

func TestGenerateAndLoadDevicesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "devices.yaml")
	devices := []dreo.Device{
		{SN: "SN-1", Name: "Bedroom Fan", Model: "DR-HTF008S", DeviceType: "tower-fan"},
		{SN: "SN-2", Name: "Office Heater", Model: "DR-HSH004S", DeviceType: "heater"},
	}

	require.NoError(t, GenerateDevicesYAML(devices, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# Discovered Dreo devices"))

	file, err := LoadDevicesYAML(path)
	require.NoError(t, err)
	require.Len(t, file.Devices, 2)
	assert.Equal(t, "Bedroom Fan", file.Devices[0].Name)
	assert.Equal(t, "tower-fan", file.Devices[0].Type)
	assert.False(t, file.Devices[0].Disabled)
}

func TestLoadDevicesYAML_MissingFileIsEmpty(t *testing.T) {
	file, err := LoadDevicesYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, file.Devices)
}

func TestLoadDevicesYAML_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices: {not: [a list"), 0644))

	_, err := LoadDevicesYAML(path)
	assert.Error(t, err)
}

func TestOverride_Lookup(t *testing.T) {
	file := &DevicesFile{Devices: []DeviceOverride{
		{SN: "SN-1", Name: "Renamed", Disabled: false},
		{SN: "SN-2", Disabled: true},
	}}

	o, ok := file.Override("SN-1")
	require.True(t, ok)
	assert.Equal(t, "Renamed", o.Name)

	o, ok = file.Override("SN-2")
	require.True(t, ok)
	assert.True(t, o.Disabled)

	_, ok = file.Override("SN-3")
	assert.False(t, ok)
}
