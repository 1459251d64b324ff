package config

import "github.com/pkg/errors"

// ErrConfigNotReady is returned when a follower or auto is built before the planner was
// configured.
var ErrConfigNotReady = errors.New("planner has not been configured")

// NewConfigNotReadyError reports that `what` was requested before configuration.
func NewConfigNotReadyError(what string) error {
	return errors.Wrapf(ErrConfigNotReady, "cannot build %s", what)
}

// NewUnknownMotorError is returned for a drive motor id outside the motor table.
func NewUnknownMotorError(name string) error {
	return errors.Errorf("unknown drive motor type %q", name)
}

// NewInvalidConfigError is returned when a physical parameter is out of range.
func NewInvalidConfigError(field string, value float64) error {
	return errors.Errorf("invalid robot config: %s must be positive, got %v", field, value)
}
