package auto

import "github.com/pkg/errors"

// NewUnknownCommandTypeError is reported for commands of a type no factory knows. The command is
// replaced by a no-op.
func NewUnknownCommandTypeError(kind string) error {
	return errors.Errorf("unknown command type %q", kind)
}

// NewMalformedCommandError is returned when the data of a command cannot be used.
func NewMalformedCommandError(kind string, err error) error {
	return errors.Wrapf(err, "malformed %s command", kind)
}
