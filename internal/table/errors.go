package table

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTable is returned when a comment carries the deployment
	// heading but its body does not have the expected table shape.
	ErrMalformedTable = errors.New("malformed deployment table")

	// ErrUnknownStatus is returned when a Status cell holds a label that no
	// status renders to.
	ErrUnknownStatus = errors.New("unrecognized status label")
)

// ParseError describes a data row that could not be parsed
type ParseError struct {
	Line int    // 1-based line number within the comment body
	Text string // the offending line, trimmed
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v (%q)", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
