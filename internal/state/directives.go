// Package state translates the raw directive map a device reports into the
// typed state entities consume. One processor per device family; anything
// unrecognized falls back to the generic processor.
package state

// Directive names exchanged with the cloud. The same names appear in
// capability descriptors, dependency rules, and control calls.
const (
	DirectivePower        = "poweron"
	DirectiveWindLevel    = "windlevel"
	DirectiveMode         = "mode"
	DirectiveShakeHorizon = "shakehorizon"
	DirectiveOscMode      = "oscmode"
	DirectiveWindType     = "windtype"
	DirectiveTemperature  = "temperature"
	DirectiveTargetTemp   = "ecolevel"
	DirectiveHumidity     = "rh"
	DirectiveTargetRH     = "humidity"
	DirectiveHotFog       = "hotfogon"
	DirectivePTC          = "ptcon"
	DirectiveMute         = "muteon"
	DirectiveVoice        = "voiceon"
	DirectiveLight        = "lighton"
	DirectiveBrightness   = "brightness"
	DirectiveChildLock    = "childlockon"
	DirectiveError        = "wrong"
)

// Device type identifiers as reported by the device list.
const (
	TypeFan            = "fan"
	TypeTowerFan       = "tower-fan"
	TypeCirculationFan = "circulation-fan"
	TypeCeilingFan     = "ceiling-fan"
	TypeHeater         = "heater"
	TypeAC             = "hac"
	TypeHumidifier     = "humidifier"
	TypeDehumidifier   = "dehumidifier"
)
