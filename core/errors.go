package core

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTransect indicates a transect has no track points or no samples.
	ErrEmptyTransect = errors.New("empty transect")
	// ErrDegenerateCoverage indicates the swath coverage of a transect is
	// empty or has no area.
	ErrDegenerateCoverage = errors.New("degenerate coverage")
	// ErrGridMismatch indicates a transect raster was built on a grid other
	// than the survey grid. It is a configuration error and aborts the run.
	ErrGridMismatch = errors.New("grid addressing mismatch")
	// ErrInvalidGrid indicates a grid specification failed validation.
	ErrInvalidGrid = errors.New("invalid grid")
	// ErrInvalidConfig indicates processor parameters failed validation.
	ErrInvalidConfig = errors.New("invalid processor config")
)

// SkipError reports a transect that was skipped on a recoverable data
// condition. It unwraps to ErrEmptyTransect or ErrDegenerateCoverage.
type SkipError struct {
	TransectID string
	From       State
	Reason     string
	Err        error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("transect %q skipped at %s: %s", e.TransectID, e.From, e.Reason)
}

func (e *SkipError) Unwrap() error { return e.Err }

// IsSkip reports whether err is a per-transect skip rather than a failure.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}
