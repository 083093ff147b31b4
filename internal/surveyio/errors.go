// Package surveyio reads survey inputs and writes the merged table.
package surveyio

import (
	"errors"
	"fmt"
)

// ErrMissingColumn indicates a required CSV column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// ErrParse wraps a malformed value in an input file.
type ErrParse struct {
	Source string
	Line   int
	Field  string
	Err    error
}

func (e *ErrParse) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s line %d: field %s: %v", e.Source, e.Line, e.Field, e.Err)
	}
	return fmt.Sprintf("%s line %d: %v", e.Source, e.Line, e.Err)
}

func (e *ErrParse) Unwrap() error { return e.Err }
