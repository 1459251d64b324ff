package path

import (
	"fmt"

	"github.com/pkg/errors"
)

// NewInvalidInputError is returned when a path is built from inputs it cannot represent.
func NewInvalidInputError(format string, args ...interface{}) error {
	return errors.Errorf("invalid path input: "+format, args...)
}

// FileVersionError is returned when a file's version is missing or not supported.
type FileVersionError struct {
	File    string
	Version string
}

func (e *FileVersionError) Error() string {
	if e.Version == "" {
		return fmt.Sprintf("%s has no version", e.File)
	}
	return fmt.Sprintf("%s has unsupported version %q", e.File, e.Version)
}
