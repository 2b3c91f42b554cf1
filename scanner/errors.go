package scanner

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTimeSignature = errors.New("invalid time signature")
	ErrOrphanModifier       = errors.New("modifier without an open chord")
	ErrUnterminatedSong     = errors.New("song is not terminated")
	// ErrUnsupportedSymbol marks symbols that are recognized but ignored. It
	// only ever shows up as a warning.
	ErrUnsupportedSymbol = errors.New("unsupported symbol ignored")
)

// ScanError is a problem found at a byte offset of the chart body.
type ScanError struct {
	Pos  int
	Char byte
	Err  error
}

func (e *ScanError) Error() string {
	if e.Char == 0 {
		return fmt.Sprintf("at %d (end of input): %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("at %d (%q): %v", e.Pos, e.Char, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

type Diagnostic struct {
	Severity Severity
	Err      *ScanError
}

func (d Diagnostic) String() string {
	return d.Severity.String() + ": " + d.Err.Error()
}

// HasErrors reports whether any diagnostic is an error rather than a warning.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
