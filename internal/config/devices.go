package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kalpizar15/dreoverse-bridge/internal/dreo"
)

// DeviceOverride customizes one discovered device. Devices absent from
// the file run with cloud-provided defaults.
type DeviceOverride struct {
	SN       string `yaml:"sn"`
	Name     string `yaml:"name,omitempty"`
	Model    string `yaml:"model,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// DevicesFile is the devices.yaml structure the discover command writes.
type DevicesFile struct {
	Devices   []DeviceOverride `yaml:"devices"`
	Generated time.Time        `yaml:"generated,omitempty"`
}

// GenerateDevicesYAML writes a devices.yaml seeded from the account's
// device list, for the user to edit.
func GenerateDevicesYAML(devices []dreo.Device, path string) error {
	file := DevicesFile{Generated: time.Now()}
	for _, d := range devices {
		file.Devices = append(file.Devices, DeviceOverride{
			SN:    d.SN,
			Name:  d.Name,
			Model: d.Model,
			Type:  d.DeviceType,
		})
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal devices file: %w", err)
	}

	header := fmt.Sprintf(`# Discovered Dreo devices
# Generated at: %s
# Edit names or set disabled: true, then restart the bridge.
# Run 'dreoverse discover' to regenerate.

`, time.Now().Format(time.RFC3339))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("write devices file: %w", err)
	}
	return nil
}

// LoadDevicesYAML loads overrides. A missing file returns an empty set,
// not an error: overrides are optional.
func LoadDevicesYAML(path string) (*DevicesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &DevicesFile{}, nil
		}
		return nil, fmt.Errorf("read devices file: %w", err)
	}

	var file DevicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	return &file, nil
}

// Override returns the override for a serial, if any.
func (f *DevicesFile) Override(sn string) (DeviceOverride, bool) {
	for _, o := range f.Devices {
		if o.SN == sn {
			return o, true
		}
	}
	return DeviceOverride{}, false
}
