// Package csvio reads and writes the partner transaction and client CSV
// formats. Imports are all-or-nothing: one bad row fails the whole file.
package csvio

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty         = errors.New("csv is empty")
	ErrMissingHeader = errors.New("csv header row is missing")
)

// LineError is a problem with one data row. Line is 1-based and counts the
// header.
type LineError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e LineError) String() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ImportError collects every failing row of an import.
type ImportError struct {
	Lines []LineError
}

func (e *ImportError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, l.String())
	}
	return fmt.Sprintf("csv import failed (%d invalid rows): %s", len(e.Lines), strings.Join(parts, "; "))
}

func (e *ImportError) add(line int, format string, args ...any) {
	e.Lines = append(e.Lines, LineError{Line: line, Reason: fmt.Sprintf(format, args...)})
}

func (e *ImportError) errOrNil() error {
	if len(e.Lines) == 0 {
		return nil
	}
	return e
}
