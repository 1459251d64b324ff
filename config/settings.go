package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Settings is the robot section of the settings file written by the path editor.
type Settings struct {
	HolonomicMode         bool    `json:"holonomicMode"`
	RobotMass             float64 `json:"robotMass"`
	RobotMOI              float64 `json:"robotMOI"`
	RobotTrackwidth       float64 `json:"robotTrackwidth"`
	DriveWheelRadius      float64 `json:"driveWheelRadius"`
	DriveGearing          float64 `json:"driveGearing"`
	MaxDriveSpeed         float64 `json:"maxDriveSpeed"`
	DriveMotorType        string  `json:"driveMotorType"`
	DriveCurrentLimit     float64 `json:"driveCurrentLimit"`
	WheelCOF              float64 `json:"wheelCOF"`
	FLModuleX             float64 `json:"flModuleX"`
	FLModuleY             float64 `json:"flModuleY"`
	FRModuleX             float64 `json:"frModuleX"`
	FRModuleY             float64 `json:"frModuleY"`
	BLModuleX             float64 `json:"blModuleX"`
	BLModuleY             float64 `json:"blModuleY"`
	BRModuleX             float64 `json:"brModuleX"`
	BRModuleY             float64 `json:"brModuleY"`
	DefaultMaxVel         float64 `json:"defaultMaxVel"`
	DefaultMaxAccel       float64 `json:"defaultMaxAccel"`
	DefaultMaxAngVel      float64 `json:"defaultMaxAngVel"`
	DefaultMaxAngAccel    float64 `json:"defaultMaxAngAccel"`
	DefaultNominalVoltage float64 `json:"defaultNominalVoltage"`
}

// ReadSettings decodes a settings file.
func ReadSettings(r io.Reader) (*Settings, error) {
	settings := &Settings{
		DriveMotorType:        "krakenX60",
		DefaultNominalVoltage: 12,
	}
	if err := json.NewDecoder(r).Decode(settings); err != nil {
		return nil, errors.Wrap(err, "malformed settings file")
	}
	return settings, nil
}

// RobotConfig builds the physical model described by the settings.
func (s *Settings) RobotConfig() (*RobotConfig, error) {
	numMotors := 1
	if !s.HolonomicMode {
		numMotors = 2
	}
	gearbox, err := MotorFromName(s.DriveMotorType, numMotors)
	if err != nil {
		return nil, err
	}
	if s.DriveGearing <= 0 {
		return nil, NewInvalidConfigError("drive gearing", s.DriveGearing)
	}
	gearbox = gearbox.WithReduction(s.DriveGearing)
	module := NewModuleConfig(s.DriveWheelRadius, s.MaxDriveSpeed, s.WheelCOF, gearbox, s.DriveCurrentLimit, numMotors)

	if s.HolonomicMode {
		return NewHolonomicConfig(s.RobotMass, s.RobotMOI, module,
			r2.Point{X: s.FLModuleX, Y: s.FLModuleY},
			r2.Point{X: s.FRModuleX, Y: s.FRModuleY},
			r2.Point{X: s.BLModuleX, Y: s.BLModuleY},
			r2.Point{X: s.BRModuleX, Y: s.BRModuleY},
		)
	}
	return NewDifferentialConfig(s.RobotMass, s.RobotMOI, module, s.RobotTrackwidth)
}

// FromSettings reads a settings file and builds its robot config.
func FromSettings(r io.Reader) (*RobotConfig, error) {
	settings, err := ReadSettings(r)
	if err != nil {
		return nil, err
	}
	return settings.RobotConfig()
}

// FromSettingsFile is FromSettings on the file at path.
func FromSettingsFile(path string) (*RobotConfig, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open settings file")
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	return FromSettings(f)
}
